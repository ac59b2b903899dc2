package reservation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parqueo/internal/transport/http/shared"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
)

// Handler exposes the reservation lifecycle over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/reservations", h.create)
	r.Get("/reservations/{id}", h.get)
	r.Get("/reservations", h.list)
	r.Post("/reservations/{id}/cancel", h.cancel)
	r.Post("/reservations/{id}/force-expire", h.forceExpire)
}

type createRequest struct {
	UserID    string    `json:"user_id"`
	VehicleID string    `json:"vehicle_id"`
	SpaceID   string    `json:"space_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
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
	spaceID, err := id.ParseSpaceID(req.SpaceID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	result, err := h.engine.Create(r.Context(), userID, vehicleID, spaceID, req.StartAt, req.EndAt)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	res, err := h.engine.Get(r.Context(), resID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

// list filters by exactly one of user_id, space_id, or state.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("user_id") != "":
		userID, err := id.ParseUserID(q.Get("user_id"))
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		h.respondList(w, r, func() ([]*Reservation, error) {
			return h.engine.ListByUser(r.Context(), userID)
		})
	case q.Get("space_id") != "":
		spaceID, err := id.ParseSpaceID(q.Get("space_id"))
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		h.respondList(w, r, func() ([]*Reservation, error) {
			return h.engine.ListBySpace(r.Context(), spaceID)
		})
	case q.Get("state") != "":
		h.respondList(w, r, func() ([]*Reservation, error) {
			return h.engine.ListByState(r.Context(), State(q.Get("state")))
		})
	default:
		shared.WriteError(w, r, dErrors.New(dErrors.CodeValidation, "one of user_id, space_id, or state is required"))
	}
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, list func() ([]*Reservation, error)) {
	out, err := list()
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	if out == nil {
		out = []*Reservation{}
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.WriteError(w, r, err)
			return
		}
	}
	res, err := h.engine.Cancel(r.Context(), resID, req.Reason)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) forceExpire(w http.ResponseWriter, r *http.Request) {
	resID, err := id.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	res, err := h.engine.ForceExpire(r.Context(), resID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}
