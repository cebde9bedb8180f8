package availability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

// ErrResourceUnavailable is returned when the queried resource does not
// exist or is not currently bookable.
var ErrResourceUnavailable = errors.New("resource unavailable")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Slot is one atomic granularity unit within operating hours, tagged free or
// occupied. Slots are ephemeral: computed per query, never stored.
type Slot struct {
	domain.Interval
	Free bool
}

// Query describes one availability computation. Date is a calendar day in
// the resource's local time zone; Open and Close are wall-clock bounds on
// that day ("HH:MM").
type Query struct {
	ResourceID  uuid.UUID
	Date        string
	SlotMinutes int
	Open        string
	Close       string
}

type Service struct {
	resources store.ResourceRepository
	bookings  store.BookingRepository
}

func NewService(resources store.ResourceRepository, bookings store.BookingRepository) *Service {
	return &Service{resources: resources, bookings: bookings}
}

// Slots partitions the query window into granularity units and marks each
// one occupied iff it overlaps an active booking. The result is ordered
// ascending and deterministic for identical inputs; the computation is
// read-only against storage.
func (s *Service) Slots(ctx context.Context, q Query) ([]Slot, error) {
	if q.ResourceID == uuid.Nil {
		return nil, validationError("resource_id is required")
	}
	if q.SlotMinutes <= 0 {
		return nil, validationError("slot must be positive")
	}

	openMin, err := parseClock(q.Open)
	if err != nil {
		return nil, validationError("open must be HH:MM")
	}
	closeMin, err := parseClock(q.Close)
	if err != nil {
		return nil, validationError("close must be HH:MM")
	}
	if closeMin < openMin {
		return nil, validationError("close must not be before open")
	}

	res, err := s.resources.Get(ctx, q.ResourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrResourceUnavailable
		}
		return nil, err
	}
	if !res.Bookable() {
		return nil, ErrResourceUnavailable
	}

	loc, err := res.Location()
	if err != nil {
		return nil, fmt.Errorf("resource timezone: %w", err)
	}
	day, err := time.ParseInLocation("2006-01-02", q.Date, loc)
	if err != nil {
		return nil, validationError("date must be YYYY-MM-DD")
	}

	window := domain.NewInterval(
		day.Add(time.Duration(openMin)*time.Minute),
		day.Add(time.Duration(closeMin)*time.Minute),
	)
	if !window.Valid() {
		// open == close: an empty window yields an empty sequence.
		return []Slot{}, nil
	}

	existing, err := s.bookings.ListActiveInWindow(ctx, res.ID, window)
	if err != nil {
		return nil, err
	}

	gran := time.Duration(q.SlotMinutes) * time.Minute
	slots := make([]Slot, 0, window.Duration()/gran)
	for start := window.Start; !start.Add(gran).After(window.End); start = start.Add(gran) {
		iv := domain.Interval{Start: start, End: start.Add(gran)}
		free := true
		for _, b := range existing {
			if iv.Overlaps(b.Interval()) {
				free = false
				break
			}
		}
		slots = append(slots, Slot{Interval: iv, Free: free})
	}
	return slots, nil
}

// Compose merges runs of free, strictly contiguous slots into candidate
// blocks of the requested duration, in ascending start order. An occupied
// slot anywhere in a window disqualifies the whole candidate. Pure function
// of its inputs.
func Compose(slots []Slot, durationMinutes, slotMinutes int) ([]domain.Interval, error) {
	if slotMinutes <= 0 {
		return nil, validationError("slot must be positive")
	}
	if durationMinutes <= 0 || durationMinutes%slotMinutes != 0 {
		return nil, validationError("duration must be a positive multiple of the slot size")
	}

	need := durationMinutes / slotMinutes
	out := make([]domain.Interval, 0)
	for i := 0; i+need <= len(slots); i++ {
		ok := true
		for k := 0; k < need; k++ {
			if !slots[i+k].Free {
				ok = false
				break
			}
			if k > 0 && !slots[i+k-1].Contiguous(slots[i+k].Interval) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, domain.Interval{Start: slots[i].Start, End: slots[i+need-1].End})
		}
	}
	return out, nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}
