package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCheckedIn BookingStatus = "checked_in"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
	BookingCancelled BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCompleted, BookingNoShow, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// ActiveStatuses are the statuses that hold a claim on their time interval.
// The non-overlap invariant is enforced across exactly this set.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn}

func (s BookingStatus) Active() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	default:
		return false
	}
}

var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCancelled, BookingNoShow},
	BookingCheckedIn: {BookingCompleted},
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a reservation of one resource over one half-open interval.
// Bookings are never deleted; cancellation is a status change, which keeps
// the full audit history.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              uuid.UUID     `bun:"id,pk,type:uuid"`
	ResourceID      uuid.UUID     `bun:"resource_id,notnull,type:uuid"`
	RequesterID     string        `bun:"requester_id,notnull"`
	StartAt         time.Time     `bun:"start_at,notnull"`
	EndAt           time.Time     `bun:"end_at,notnull"`
	Status          BookingStatus `bun:"status,notnull"`
	Notes           string        `bun:"notes"`
	CancelledReason string        `bun:"cancelled_reason"`
	DeniedReason    string        `bun:"denied_reason"`
	DecidedAt       *time.Time    `bun:"decided_at"`
	DecidedBy       string        `bun:"decided_by"`
	CreatedAt       time.Time     `bun:"created_at,notnull"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartAt.UTC(), End: b.EndAt.UTC()}
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// BookingEvent is one immutable audit record: a booking moved from one
// status to another. Creation is recorded with an empty FromStatus.
type BookingEvent struct {
	bun.BaseModel `bun:"table:booking_events"`

	ID         uuid.UUID     `bun:"id,pk,type:uuid"`
	BookingID  uuid.UUID     `bun:"booking_id,notnull,type:uuid"`
	FromStatus BookingStatus `bun:"from_status"`
	ToStatus   BookingStatus `bun:"to_status,notnull"`
	Actor      string        `bun:"actor,notnull"`
	Reason     string        `bun:"reason"`
	CreatedAt  time.Time     `bun:"created_at,notnull"`
}

func (e *BookingEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
