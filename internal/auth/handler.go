package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parqueo/internal/transport/http/shared"
	dErrors "parqueo/pkg/domain-errors"
)

// Handler exposes login over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}
	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, session)
}
