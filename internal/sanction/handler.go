package sanction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parqueo/internal/transport/http/shared"
	id "parqueo/pkg/domain"
)

// Handler exposes administrative sanction management over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/sanctions", h.create)
	r.Get("/sanctions/{id}", h.get)
	r.Get("/users/{userID}/sanctions", h.listByUser)
	r.Post("/sanctions/{id}/resolve", h.resolve)
	r.Post("/sanctions/{id}/void", h.void)
}

type createRequest struct {
	UserID        string `json:"user_id"`
	VehicleID     string `json:"vehicle_id"`
	RuleID        string `json:"rule_id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Reason        string `json:"reason"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	vehicleID, err := id.ParseVehicleID(req.VehicleID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	ruleID, err := id.ParseRuleID(req.RuleID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	in := CreateInput{
		UserID:    userID,
		VehicleID: vehicleID,
		RuleID:    ruleID,
		Reason:    req.Reason,
	}
	if req.ReservationID != "" {
		resID, err := id.ParseReservationID(req.ReservationID)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		in.ReservationID = &resID
	}
	sn, err := h.svc.Create(r.Context(), in)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sn)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sanctionID, err := id.ParseSanctionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	sn, err := h.svc.Get(r.Context(), sanctionID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sn)
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	out, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if out == nil {
		out = []*Sanction{}
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	sanctionID, err := id.ParseSanctionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	sn, err := h.svc.Resolve(r.Context(), sanctionID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sn)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	sanctionID, err := id.ParseSanctionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	sn, err := h.svc.Void(r.Context(), sanctionID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sn)
}
