package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/service/bookings"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

type bookingsService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Approve(ctx context.Context, id uuid.UUID, actor bookings.Actor) (domain.Booking, error)
	Deny(ctx context.Context, id uuid.UUID, actor bookings.Actor, reason string) (domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, actor bookings.Actor, reason string) (domain.Booking, error)
	CheckIn(ctx context.Context, id uuid.UUID, actor bookings.Actor) (domain.Booking, error)
	Complete(ctx context.Context, id uuid.UUID, actor bookings.Actor) (domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID, actor bookings.Actor) (domain.Booking, error)
	List(ctx context.Context, actor bookings.Actor, f store.BookingFilter) ([]domain.Booking, error)
}

type BookingsHandler struct {
	svc bookingsService
	log *slog.Logger
}

func NewBookingsHandler(svc bookingsService, log *slog.Logger) *BookingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.bookings")),
	}
}

type bookingDTO struct {
	ID              uuid.UUID  `json:"id"`
	ResourceID      uuid.UUID  `json:"resourceId"`
	RequesterID     string     `json:"requesterId"`
	StartAt         time.Time  `json:"startAt"`
	EndAt           time.Time  `json:"endAt"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	CancelledReason string     `json:"cancelledReason,omitempty"`
	DeniedReason    string     `json:"deniedReason,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	DecidedBy       string     `json:"decidedBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toBookingDTO(b domain.Booking) bookingDTO {
	return bookingDTO{
		ID:              b.ID,
		ResourceID:      b.ResourceID,
		RequesterID:     b.RequesterID,
		StartAt:         b.StartAt,
		EndAt:           b.EndAt,
		Status:          string(b.Status),
		Notes:           b.Notes,
		CancelledReason: b.CancelledReason,
		DeniedReason:    b.DeniedReason,
		DecidedAt:       b.DecidedAt,
		DecidedBy:       b.DecidedBy,
		CreatedAt:       b.CreatedAt,
	}
}

type listResponse struct {
	Data []bookingDTO `json:"data"`
}

type createBookingRequest struct {
	Resource string    `json:"resource"`
	StartAt  time.Time `json:"startAt"`
	EndAt    time.Time `json:"endAt"`
	Notes    string    `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Create serves POST /bookings.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("rpc", "CreateBooking"))

	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", CodeUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", CodeInvalidInterval)
		return
	}
	resourceID, err := uuid.Parse(req.Resource)
	if err != nil {
		writeError(w, http.StatusBadRequest, "resource must be a UUID", CodeInvalidInterval)
		return
	}

	b, err := h.svc.Create(r.Context(), bookings.CreateInput{
		ResourceID:  resourceID,
		RequesterID: actor.ID,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Notes:       req.Notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("booking conflict",
				slog.String("resource_id", resourceID.String()),
				slog.String("requester_id", actor.ID),
				slog.Time("start_at", req.StartAt),
				slog.Time("end_at", req.EndAt),
			)
			writeError(w, http.StatusConflict, "that slot is already booked, pick a different one", CodeSlotConflict)
			return
		}
		if errors.Is(err, bookings.ErrResourceUnavailable) {
			writeError(w, http.StatusConflict, "resource is not bookable", CodeResourceUnavailable)
			return
		}
		var vErr *bookings.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("requester_id", actor.ID))
			writeError(w, http.StatusBadRequest, vErr.Error(), CodeInvalidInterval)
			return
		}
		log.Error("booking create failed", slog.Any("err", err), slog.String("requester_id", actor.ID))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
		return
	}

	log.Info("booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("resource_id", b.ResourceID.String()),
		slog.String("requester_id", b.RequesterID),
		slog.Time("start_at", b.StartAt),
		slog.Time("end_at", b.EndAt),
	)
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// Approve serves PATCH /bookings/{id}/approve.
func (h *BookingsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, "ApproveBooking", func(ctx context.Context, id uuid.UUID, actor bookings.Actor, _ string) (domain.Booking, error) {
		return h.svc.Approve(ctx, id, actor)
	})
}

// Deny serves PATCH /bookings/{id}/deny.
func (h *BookingsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, "DenyBooking", h.svc.Deny)
}

// Cancel serves PATCH /bookings/{id}/cancel.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, "CancelBooking", h.svc.Cancel)
}

// CheckIn serves PATCH /bookings/{id}/check-in.
func (h *BookingsHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, "CheckInBooking", func(ctx context.Context, id uuid.UUID, actor bookings.Actor, _ string) (domain.Booking, error) {
		return h.svc.CheckIn(ctx, id, actor)
	})
}

// Complete serves PATCH /bookings/{id}/complete.
func (h *BookingsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, "CompleteBooking", func(ctx context.Context, id uuid.UUID, actor bookings.Actor, _ string) (domain.Booking, error) {
		return h.svc.Complete(ctx, id, actor)
	})
}

func (h *BookingsHandler) doTransition(
	w http.ResponseWriter,
	r *http.Request,
	rpc string,
	fn func(ctx context.Context, id uuid.UUID, actor bookings.Actor, reason string) (domain.Booking, error),
) {
	log := h.log.With(slog.String("rpc", rpc))

	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", CodeUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "booking id must be a UUID", CodeInvalidQuery)
		return
	}

	var req reasonRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", CodeInvalidQuery)
			return
		}
	}

	b, err := fn(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.writeTransitionError(w, log, err, id, actor)
		return
	}

	log.Info("booking transitioned",
		slog.String("booking_id", b.ID.String()),
		slog.String("status", string(b.Status)),
		slog.String("actor_id", actor.ID),
	)
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *BookingsHandler) writeTransitionError(w http.ResponseWriter, log *slog.Logger, err error, id uuid.UUID, actor bookings.Actor) {
	switch {
	case errors.Is(err, bookings.ErrForbidden):
		log.Warn("forbidden", slog.String("booking_id", id.String()), slog.String("actor_id", actor.ID))
		writeError(w, http.StatusForbidden, "insufficient privileges", CodeForbidden)
	case errors.Is(err, store.ErrInvalidTransition):
		log.Info("invalid transition", slog.String("booking_id", id.String()), slog.String("actor_id", actor.ID))
		writeError(w, http.StatusConflict, "booking is not in a state that allows this change", CodeInvalidTransition)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found", CodeNotFound)
	default:
		var vErr *bookings.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error(), CodeInvalidQuery)
			return
		}
		log.Error("booking transition failed", slog.Any("err", err), slog.String("booking_id", id.String()))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
	}
}

// List serves GET /bookings (admin queue or filtered listing).
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("rpc", "ListBookings"))

	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", CodeUnauthorized)
		return
	}

	f, err := parseBookingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidQuery)
		return
	}

	h.list(w, r, log, actor, f)
}

// ListMine serves GET /bookings/me.
func (h *BookingsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("rpc", "ListMyBookings"))

	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", CodeUnauthorized)
		return
	}

	f, err := parseBookingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidQuery)
		return
	}
	f.RequesterID = actor.ID

	h.list(w, r, log, actor, f)
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request, log *slog.Logger, actor bookings.Actor, f store.BookingFilter) {
	bs, err := h.svc.List(r.Context(), actor, f)
	if err != nil {
		if errors.Is(err, bookings.ErrForbidden) {
			writeError(w, http.StatusForbidden, "insufficient privileges", CodeForbidden)
			return
		}
		var vErr *bookings.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error(), CodeInvalidQuery)
			return
		}
		log.Error("bookings list failed", slog.Any("err", err), slog.String("actor_id", actor.ID))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
		return
	}

	out := listResponse{Data: make([]bookingDTO, 0, len(bs))}
	for _, b := range bs {
		out.Data = append(out.Data, toBookingDTO(b))
	}

	log.Debug("bookings listed", slog.String("actor_id", actor.ID), slog.Int("count", len(out.Data)))
	writeJSON(w, http.StatusOK, out)
}

func parseBookingFilter(r *http.Request) (store.BookingFilter, error) {
	params := r.URL.Query()
	var f store.BookingFilter

	if s := params.Get("status"); s != "" {
		st, ok := domain.ParseBookingStatus(s)
		if !ok {
			return store.BookingFilter{}, errors.New("invalid status parameter")
		}
		f.Status = st
	}
	if s := params.Get("resourceId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return store.BookingFilter{}, errors.New("resourceId must be a UUID")
		}
		f.ResourceID = id
	}
	if s := params.Get("requesterId"); s != "" {
		f.RequesterID = s
	}
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return store.BookingFilter{}, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if s := params.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return store.BookingFilter{}, errors.New("offset must be an integer")
		}
		f.Offset = n
	}
	return f, nil
}
