package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/service/availability"
)

type availabilityService interface {
	Slots(ctx context.Context, q availability.Query) ([]availability.Slot, error)
}

type AvailabilityHandler struct {
	svc availabilityService
	log *slog.Logger
}

func NewAvailabilityHandler(svc availabilityService, log *slog.Logger) *AvailabilityHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.availability")),
	}
}

type slotDTO struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	Free    bool      `json:"free"`
}

type candidateDTO struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

type availabilityDTO struct {
	Slots      []slotDTO      `json:"slots"`
	Candidates []candidateDTO `json:"candidates,omitempty"`
}

// Get serves GET /resources/{id}/availability. The optional duration
// parameter additionally returns composed candidate blocks of that length.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("rpc", "GetAvailability"))

	resourceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "resource id must be a UUID", CodeInvalidQuery)
		return
	}

	params := r.URL.Query()
	slotMinutes := 30
	if s := params.Get("slot"); s != "" {
		slotMinutes, err = strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "slot must be an integer", CodeInvalidQuery)
			return
		}
	}

	q := availability.Query{
		ResourceID:  resourceID,
		Date:        params.Get("date"),
		SlotMinutes: slotMinutes,
		Open:        params.Get("open"),
		Close:       params.Get("close"),
	}

	slots, err := h.svc.Slots(r.Context(), q)
	if err != nil {
		if errors.Is(err, availability.ErrResourceUnavailable) {
			log.Info("resource unavailable", slog.String("resource_id", resourceID.String()))
			writeError(w, http.StatusConflict, "resource is not bookable", CodeResourceUnavailable)
			return
		}
		var vErr *availability.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid query", slog.Any("err", err), slog.String("resource_id", resourceID.String()))
			writeError(w, http.StatusBadRequest, vErr.Error(), CodeInvalidQuery)
			return
		}
		log.Error("availability query failed", slog.Any("err", err), slog.String("resource_id", resourceID.String()))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
		return
	}

	out := availabilityDTO{Slots: make([]slotDTO, 0, len(slots))}
	for _, s := range slots {
		out.Slots = append(out.Slots, slotDTO{StartAt: s.Start, EndAt: s.End, Free: s.Free})
	}

	if d := params.Get("duration"); d != "" {
		durationMinutes, err := strconv.Atoi(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "duration must be an integer", CodeInvalidQuery)
			return
		}
		candidates, err := availability.Compose(slots, durationMinutes, slotMinutes)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidDuration)
			return
		}
		out.Candidates = make([]candidateDTO, 0, len(candidates))
		for _, c := range candidates {
			out.Candidates = append(out.Candidates, candidateDTO{StartAt: c.Start, EndAt: c.End})
		}
	}

	log.Debug("availability served",
		slog.String("resource_id", resourceID.String()),
		slog.String("date", q.Date),
		slog.Int("slots", len(out.Slots)),
	)
	writeJSON(w, http.StatusOK, out)
}
