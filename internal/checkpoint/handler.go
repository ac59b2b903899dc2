package checkpoint

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parqueo/internal/transport/http/shared"
	dErrors "parqueo/pkg/domain-errors"
)

// Handler exposes the checkpoint protocol over HTTP. Scanners POST the
// secret they read; the status route lets gate displays preview a QR.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/scans/entry", h.scanEntry)
	r.Post("/scans/exit", h.scanExit)
	r.Get("/scans/status/{secret}", h.lookupStatus)
}

type scanRequest struct {
	Secret string `json:"secret"`
}

func (h *Handler) scanEntry(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if req.Secret == "" {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeValidation, "secret is required"))
		return
	}
	receipt, err := h.svc.ScanEntry(r.Context(), req.Secret)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) scanExit(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if req.Secret == "" {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeValidation, "secret is required"))
		return
	}
	receipt, err := h.svc.ScanExit(r.Context(), req.Secret)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) lookupStatus(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	status, err := h.svc.LookupStatus(r.Context(), secret)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, status)
}
