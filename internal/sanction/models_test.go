package sanction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parqueo/internal/rule"
)

func TestEscalate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name    string
		kind    rule.FaultKind
		prior   int
		want    PunishmentKind
		wantEnd *time.Time
	}{
		{"first minor is a warning", rule.FaultMinor, 0, PunishmentWarning, nil},
		{"second minor suspends a week", rule.FaultMinor, 1, PunishmentTemporarySuspension, ptr(now.Add(7 * day))},
		{"third minor is total", rule.FaultMinor, 2, PunishmentTotalSuspension, nil},
		{"fourth minor stays total", rule.FaultMinor, 3, PunishmentTotalSuspension, nil},
		{"first major suspends a week", rule.FaultMajor, 0, PunishmentTemporarySuspension, ptr(now.Add(7 * day))},
		{"second major suspends a month", rule.FaultMajor, 1, PunishmentTemporarySuspension, ptr(now.Add(30 * day))},
		{"third major is total", rule.FaultMajor, 2, PunishmentTotalSuspension, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Escalate(tt.kind, tt.prior, now)
			require.Equal(t, tt.want, p.Kind)
			if tt.want == PunishmentWarning {
				require.Nil(t, p.SuspensionStart)
			} else {
				require.NotNil(t, p.SuspensionStart)
				require.Equal(t, now, *p.SuspensionStart)
			}
			if tt.wantEnd == nil {
				require.Nil(t, p.SuspensionEnd)
			} else {
				require.NotNil(t, p.SuspensionEnd)
				require.Equal(t, *tt.wantEnd, *p.SuspensionEnd)
			}
		})
	}
}

func TestEffectiveAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	t.Run("warning never effective", func(t *testing.T) {
		sn := &Sanction{State: StateActive, PunishmentKind: PunishmentWarning}
		require.False(t, sn.EffectiveAt(now))
	})

	t.Run("inside window", func(t *testing.T) {
		sn := &Sanction{State: StateActive, SuspensionStart: &start, SuspensionEnd: &end}
		require.True(t, sn.EffectiveAt(now))
		require.False(t, sn.EffectiveAt(start.Add(-time.Second)))
		require.False(t, sn.EffectiveAt(end))
	})

	t.Run("open-ended total", func(t *testing.T) {
		sn := &Sanction{State: StateActive, SuspensionStart: &start}
		require.True(t, sn.EffectiveAt(now.Add(1000*time.Hour)))
	})

	t.Run("resolved no longer bites", func(t *testing.T) {
		sn := &Sanction{State: StateResolved, SuspensionStart: &start, SuspensionEnd: &end}
		require.False(t, sn.EffectiveAt(now))
	})
}

func ptr(t time.Time) *time.Time { return &t }
