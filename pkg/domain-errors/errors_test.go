package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeConflict, "space already reserved")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("wrapped code is found through the chain", func(t *testing.T) {
		inner := New(CodeNotFound, "reservation missing")
		outer := Wrap(inner, CodeInternal, "transition failed")
		assert.True(t, HasCode(outer, CodeNotFound))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("fmt-wrapped coded error is still found", func(t *testing.T) {
		err := fmt.Errorf("sweep: %w", New(CodeInvalidState, "terminal"))
		assert.True(t, HasCode(err, CodeInvalidState))
	})

	t.Run("plain error carries no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeLocked, CodeOf(New(CodeLocked, "suspended")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestDetails(t *testing.T) {
	err := New(CodeLocked, "account suspended").WithDetail("suspension_end", "2026-01-02T15:04:05Z")
	details := DetailsOf(err)
	require.NotNil(t, details)
	assert.Equal(t, "2026-01-02T15:04:05Z", details["suspension_end"])
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeInvalidInput: http.StatusBadRequest,
		CodeConflict:     http.StatusConflict,
		CodeInvalidState: http.StatusConflict,
		CodeNotFound:     http.StatusNotFound,
		CodeLocked:       http.StatusLocked,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}
