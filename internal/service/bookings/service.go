package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/events"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

var (
	// ErrForbidden is returned when the actor lacks the privilege an
	// operation requires.
	ErrForbidden = errors.New("forbidden")
	// ErrResourceUnavailable is returned when the target resource does
	// not exist or is not bookable.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Actor is the identity performing an operation, as resolved by the
// identity collaborator upstream.
type Actor struct {
	ID    string
	Admin bool
}

type Service struct {
	resources store.ResourceRepository
	bookings  store.BookingRepository
	bus       events.Publisher
	log       *slog.Logger
}

func NewService(resources store.ResourceRepository, bookings store.BookingRepository, bus events.Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = events.Noop{}
	}
	return &Service{
		resources: resources,
		bookings:  bookings,
		bus:       bus,
		log:       log.With(slog.String("component", "service.bookings")),
	}
}

type CreateInput struct {
	ResourceID  uuid.UUID
	RequesterID string
	StartAt     time.Time
	EndAt       time.Time
	Notes       string
}

// Create commits a new pending booking. The interval must be valid, lie
// within the resource's operating hours, and not overlap any active booking;
// the overlap check is atomic with the insert, so of two racing requests for
// overlapping intervals exactly one wins. Conflicts are terminal for the
// attempt: picking another candidate is the caller's decision.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if in.RequesterID == "" {
		return domain.Booking{}, validationError("requester_id is required")
	}
	if in.ResourceID == uuid.Nil {
		return domain.Booking{}, validationError("resource_id is required")
	}

	iv := domain.NewInterval(in.StartAt, in.EndAt)
	if !iv.Valid() {
		return domain.Booking{}, validationError("end_at must be after start_at")
	}

	res, err := s.resources.Get(ctx, in.ResourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, ErrResourceUnavailable
		}
		return domain.Booking{}, err
	}
	if !res.Bookable() {
		return domain.Booking{}, ErrResourceUnavailable
	}

	loc, err := res.Location()
	if err != nil {
		return domain.Booking{}, err
	}
	if !res.OperatingWindow(iv.Start, loc).Contains(iv) {
		return domain.Booking{}, validationError("booking must fall within operating hours")
	}

	b := domain.Booking{
		ResourceID:  res.ID,
		RequesterID: in.RequesterID,
		StartAt:     iv.Start,
		EndAt:       iv.End,
		Status:      domain.BookingPending,
		Notes:       strings.TrimSpace(in.Notes),
	}

	created, err := s.bookings.Create(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}

	s.publish(ctx, events.SubjectBookingCreated, created, "", created.RequesterID, "")
	return created, nil
}

// Approve moves a pending booking to confirmed. Admin only.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (domain.Booking, error) {
	if !actor.Admin {
		return domain.Booking{}, ErrForbidden
	}
	return s.transition(ctx, store.Transition{
		BookingID: id,
		From:      domain.BookingPending,
		To:        domain.BookingConfirmed,
		Actor:     actor.ID,
		Decision:  true,
	})
}

// Deny cancels a pending booking with a mandatory reason. Admin only.
func (s *Service) Deny(ctx context.Context, id uuid.UUID, actor Actor, reason string) (domain.Booking, error) {
	if !actor.Admin {
		return domain.Booking{}, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Booking{}, validationError("reason is required")
	}
	return s.transition(ctx, store.Transition{
		BookingID: id,
		From:      domain.BookingPending,
		To:        domain.BookingCancelled,
		Actor:     actor.ID,
		Reason:    reason,
		Decision:  true,
	})
}

// Cancel cancels a pending or confirmed booking. Requesters may cancel
// their own bookings; admins may cancel any. Reason is optional.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (domain.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !actor.Admin && b.RequesterID != actor.ID {
		return domain.Booking{}, ErrForbidden
	}
	if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
		return domain.Booking{}, store.ErrInvalidTransition
	}
	// The conditional update below re-checks the status, so a concurrent
	// transition between the read and the write still fails cleanly.
	return s.transition(ctx, store.Transition{
		BookingID: id,
		From:      b.Status,
		To:        domain.BookingCancelled,
		Actor:     actor.ID,
		Reason:    strings.TrimSpace(reason),
	})
}

// CheckIn marks occupancy start on a confirmed booking. Operator action.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID, actor Actor) (domain.Booking, error) {
	if !actor.Admin {
		return domain.Booking{}, ErrForbidden
	}
	return s.transition(ctx, store.Transition{
		BookingID: id,
		From:      domain.BookingConfirmed,
		To:        domain.BookingCheckedIn,
		Actor:     actor.ID,
	})
}

// Complete marks occupancy end on a checked-in booking. Operator action.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (domain.Booking, error) {
	if !actor.Admin {
		return domain.Booking{}, ErrForbidden
	}
	return s.transition(ctx, store.Transition{
		BookingID: id,
		From:      domain.BookingCheckedIn,
		To:        domain.BookingCompleted,
		Actor:     actor.ID,
	})
}

// SweepNoShows flips confirmed bookings whose interval elapsed without a
// check-in to no_show, emitting one event per booking. Meant to run on a
// periodic ticker, never as a per-booking timer.
func (s *Service) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	swept, err := s.bookings.SweepNoShows(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, b := range swept {
		s.publish(ctx, events.SubjectBookingStatusChanged, b, domain.BookingConfirmed, "system", "")
	}
	return len(swept), nil
}

// Get returns one booking, visible to its requester and to admins.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor Actor) (domain.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !actor.Admin && b.RequesterID != actor.ID {
		return domain.Booking{}, ErrForbidden
	}
	return b, nil
}

// List returns bookings matching the filter, ordered by start time.
// Non-admin actors may only list their own bookings.
func (s *Service) List(ctx context.Context, actor Actor, f store.BookingFilter) ([]domain.Booking, error) {
	if !actor.Admin {
		if f.RequesterID != "" && f.RequesterID != actor.ID {
			return nil, ErrForbidden
		}
		f.RequesterID = actor.ID
	}
	if f.Status != "" {
		if _, ok := domain.ParseBookingStatus(string(f.Status)); !ok {
			return nil, validationError("invalid status filter")
		}
	}
	return s.bookings.List(ctx, f)
}

func (s *Service) transition(ctx context.Context, t store.Transition) (domain.Booking, error) {
	b, err := s.bookings.Transition(ctx, t)
	if err != nil {
		return domain.Booking{}, err
	}
	s.publish(ctx, events.SubjectBookingStatusChanged, b, t.From, t.Actor, t.Reason)
	return b, nil
}

// publish hands the event to the notification collaborator. The audit row
// was already written inside the storage transaction; a failed publish is
// logged but never fails the operation.
func (s *Service) publish(ctx context.Context, subject string, b domain.Booking, from domain.BookingStatus, actor, reason string) {
	ev := events.BookingEvent{
		BookingID:   b.ID,
		ResourceID:  b.ResourceID,
		RequesterID: b.RequesterID,
		FromStatus:  from,
		ToStatus:    b.Status,
		Actor:       actor,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, subject, ev); err != nil {
		s.log.Warn("event publish failed",
			slog.Any("err", err),
			slog.String("subject", subject),
			slog.String("booking_id", b.ID.String()),
		)
	}
}
