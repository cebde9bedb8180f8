package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
)

// BookingFilter narrows a booking listing. Zero values mean "no filter".
type BookingFilter struct {
	RequesterID string
	ResourceID  uuid.UUID
	Status      domain.BookingStatus
	Limit       int
	Offset      int
}

// Transition describes one status change to apply atomically. The update is
// conditional on the booking still being in From; anything else is reported
// as ErrInvalidTransition.
type Transition struct {
	BookingID uuid.UUID
	From      domain.BookingStatus
	To        domain.BookingStatus
	Actor     string
	Reason    string
	// Decision marks admin approve/deny: stamps decided_at/decided_by,
	// and routes Reason into denied_reason instead of cancelled_reason.
	Decision bool
}

type BookingRepository interface {
	// Create commits a new pending booking, or fails with ErrConflict if
	// any active booking on the same resource overlaps it at commit time.
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	List(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
	// ListActiveInWindow returns the active bookings of one resource that
	// overlap the window, ordered by start time. Read-only; never blocks
	// on writers.
	ListActiveInWindow(ctx context.Context, resourceID uuid.UUID, window domain.Interval) ([]domain.Booking, error)
	Transition(ctx context.Context, t Transition) (domain.Booking, error)
	// SweepNoShows flips confirmed bookings whose interval has fully
	// elapsed to no_show and returns them.
	SweepNoShows(ctx context.Context, now time.Time) ([]domain.Booking, error)
	ListEvents(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingEvent, error)
}
