package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

type fakeResourceRepo struct {
	getFn func(ctx context.Context, id uuid.UUID) (domain.Resource, error)
}

func (f *fakeResourceRepo) Get(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	return f.getFn(ctx, id)
}

type fakeBookingRepo struct {
	createFn     func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	getFn        func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	listFn       func(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error)
	transitionFn func(ctx context.Context, t store.Transition) (domain.Booking, error)
	sweepFn      func(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

func (f *fakeBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	return f.createFn(ctx, b)
}

func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return f.getFn(ctx, id)
}

func (f *fakeBookingRepo) List(ctx context.Context, fl store.BookingFilter) ([]domain.Booking, error) {
	return f.listFn(ctx, fl)
}

func (f *fakeBookingRepo) ListActiveInWindow(ctx context.Context, resourceID uuid.UUID, window domain.Interval) ([]domain.Booking, error) {
	panic("not used")
}

func (f *fakeBookingRepo) Transition(ctx context.Context, t store.Transition) (domain.Booking, error) {
	return f.transitionFn(ctx, t)
}

func (f *fakeBookingRepo) SweepNoShows(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return f.sweepFn(ctx, now)
}

func (f *fakeBookingRepo) ListEvents(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingEvent, error) {
	panic("not used")
}

type recordedEvent struct {
	subject string
	payload any
}

type recordingBus struct {
	published []recordedEvent
	err       error
}

func (r *recordingBus) Publish(ctx context.Context, subject string, payload any) error {
	r.published = append(r.published, recordedEvent{subject: subject, payload: payload})
	return r.err
}

func (r *recordingBus) Close() error { return nil }

func openResource(id uuid.UUID) domain.Resource {
	return domain.Resource{
		ID:           id,
		Name:         "Cabina 1",
		Type:         domain.ResourceTypePhoneBooth,
		Status:       domain.ResourceStatusBookable,
		Capacity:     1,
		OpenMinutes:  9 * 60,
		CloseMinutes: 19 * 60,
		Timezone:     "UTC",
	}
}

func resourceRepoWith(res domain.Resource) *fakeResourceRepo {
	return &fakeResourceRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
			if id != res.ID {
				return domain.Resource{}, store.ErrNotFound
			}
			return res, nil
		},
	}
}

func TestCreate_PendingBookingAndEvent(t *testing.T) {
	resID := uuid.New()
	bus := &recordingBus{}
	repo := &fakeBookingRepo{
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			if b.Status != domain.BookingPending {
				t.Fatalf("create status = %q, want pending", b.Status)
			}
			b.ID = uuid.New()
			return b, nil
		},
	}
	svc := NewService(resourceRepoWith(openResource(resID)), repo, bus, nil)

	got, err := svc.Create(context.Background(), CreateInput{
		ResourceID:  resID,
		RequesterID: "user-1",
		StartAt:     time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
		Notes:       "  standup  ",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.Status != domain.BookingPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	if got.Notes != "standup" {
		t.Fatalf("notes = %q, want trimmed", got.Notes)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if bus.published[0].subject != "bookings.created" {
		t.Fatalf("subject = %q, want bookings.created", bus.published[0].subject)
	}
}

func TestCreate_ValidationAndAvailability(t *testing.T) {
	resID := uuid.New()
	maintID := uuid.New()
	maint := openResource(maintID)
	maint.Status = domain.ResourceStatusMaintenance

	resources := &fakeResourceRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
			switch id {
			case resID:
				return openResource(resID), nil
			case maintID:
				return maint, nil
			}
			return domain.Resource{}, store.ErrNotFound
		},
	}
	repo := &fakeBookingRepo{
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			t.Fatal("Create must not reach storage on invalid input")
			return domain.Booking{}, nil
		},
	}
	svc := NewService(resources, repo, &recordingBus{}, nil)

	at := func(h, m int) time.Time { return time.Date(2026, 3, 9, h, m, 0, 0, time.UTC) }

	cases := []struct {
		name       string
		in         CreateInput
		wantErr    error
		validation bool
	}{
		{
			name:       "missing requester",
			in:         CreateInput{ResourceID: resID, StartAt: at(10, 0), EndAt: at(11, 0)},
			validation: true,
		},
		{
			name:       "end before start",
			in:         CreateInput{ResourceID: resID, RequesterID: "u", StartAt: at(11, 0), EndAt: at(10, 0)},
			validation: true,
		},
		{
			name:       "zero length",
			in:         CreateInput{ResourceID: resID, RequesterID: "u", StartAt: at(10, 0), EndAt: at(10, 0)},
			validation: true,
		},
		{
			name:       "outside operating hours",
			in:         CreateInput{ResourceID: resID, RequesterID: "u", StartAt: at(18, 30), EndAt: at(19, 30)},
			validation: true,
		},
		{
			name:    "unknown resource",
			in:      CreateInput{ResourceID: uuid.New(), RequesterID: "u", StartAt: at(10, 0), EndAt: at(11, 0)},
			wantErr: ErrResourceUnavailable,
		},
		{
			name:    "resource in maintenance",
			in:      CreateInput{ResourceID: maintID, RequesterID: "u", StartAt: at(10, 0), EndAt: at(11, 0)},
			wantErr: ErrResourceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			if tc.validation {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreate_ConflictPropagatesWithoutEvent(t *testing.T) {
	resID := uuid.New()
	bus := &recordingBus{}
	repo := &fakeBookingRepo{
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			return domain.Booking{}, store.ErrConflict
		},
	}
	svc := NewService(resourceRepoWith(openResource(resID)), repo, bus, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		ResourceID:  resID,
		RequesterID: "user-1",
		StartAt:     time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("error = %v, want %v", err, store.ErrConflict)
	}
	if len(bus.published) != 0 {
		t.Fatalf("published %d events on failed create, want 0", len(bus.published))
	}
}

func TestApprove_AdminOnly(t *testing.T) {
	repo := &fakeBookingRepo{
		transitionFn: func(ctx context.Context, tr store.Transition) (domain.Booking, error) {
			t.Fatal("Transition must not run for non-admin actors")
			return domain.Booking{}, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	_, err := svc.Approve(context.Background(), uuid.New(), Actor{ID: "user-1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("error = %v, want %v", err, ErrForbidden)
	}
}

func TestApprove_TransitionAndEvent(t *testing.T) {
	id := uuid.New()
	bus := &recordingBus{}
	repo := &fakeBookingRepo{
		transitionFn: func(ctx context.Context, tr store.Transition) (domain.Booking, error) {
			if tr.From != domain.BookingPending || tr.To != domain.BookingConfirmed {
				t.Fatalf("transition %q -> %q, want pending -> confirmed", tr.From, tr.To)
			}
			if !tr.Decision {
				t.Fatal("approve must stamp the decision fields")
			}
			return domain.Booking{ID: id, Status: domain.BookingConfirmed}, nil
		},
	}
	svc := NewService(nil, repo, bus, nil)

	got, err := svc.Approve(context.Background(), id, Actor{ID: "admin-1", Admin: true})
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if got.Status != domain.BookingConfirmed {
		t.Fatalf("status = %q, want confirmed", got.Status)
	}
	if len(bus.published) != 1 || bus.published[0].subject != "bookings.status_changed" {
		t.Fatalf("published = %v, want one bookings.status_changed", bus.published)
	}
}

func TestApprove_DuplicateIsInvalidTransition(t *testing.T) {
	bus := &recordingBus{}
	repo := &fakeBookingRepo{
		transitionFn: func(ctx context.Context, tr store.Transition) (domain.Booking, error) {
			return domain.Booking{}, store.ErrInvalidTransition
		},
	}
	svc := NewService(nil, repo, bus, nil)

	_, err := svc.Approve(context.Background(), uuid.New(), Actor{ID: "admin-1", Admin: true})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("error = %v, want %v", err, store.ErrInvalidTransition)
	}
	if len(bus.published) != 0 {
		t.Fatalf("published %d events on failed transition, want 0", len(bus.published))
	}
}

func TestDeny_RequiresReason(t *testing.T) {
	svc := NewService(nil, &fakeBookingRepo{}, &recordingBus{}, nil)

	for _, reason := range []string{"", "   "} {
		_, err := svc.Deny(context.Background(), uuid.New(), Actor{ID: "admin-1", Admin: true}, reason)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("reason %q: error type = %T, want *ValidationError", reason, err)
		}
	}
}

func TestDeny_RoutesReasonAsDecision(t *testing.T) {
	repo := &fakeBookingRepo{
		transitionFn: func(ctx context.Context, tr store.Transition) (domain.Booking, error) {
			if tr.To != domain.BookingCancelled || !tr.Decision {
				t.Fatalf("transition = %+v, want cancelled decision", tr)
			}
			if tr.Reason != "double booked" {
				t.Fatalf("reason = %q, want trimmed reason", tr.Reason)
			}
			return domain.Booking{Status: domain.BookingCancelled}, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	if _, err := svc.Deny(context.Background(), uuid.New(), Actor{ID: "admin-1", Admin: true}, "  double booked "); err != nil {
		t.Fatalf("Deny error: %v", err)
	}
}

func TestCancel_Ownership(t *testing.T) {
	id := uuid.New()
	owned := domain.Booking{ID: id, RequesterID: "user-1", Status: domain.BookingConfirmed}

	repo := &fakeBookingRepo{
		getFn: func(ctx context.Context, got uuid.UUID) (domain.Booking, error) {
			return owned, nil
		},
		transitionFn: func(ctx context.Context, tr store.Transition) (domain.Booking, error) {
			if tr.From != domain.BookingConfirmed || tr.To != domain.BookingCancelled {
				t.Fatalf("transition %q -> %q, want confirmed -> cancelled", tr.From, tr.To)
			}
			if tr.Decision {
				t.Fatal("requester cancel must not stamp decision fields")
			}
			return domain.Booking{ID: id, Status: domain.BookingCancelled}, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	if _, err := svc.Cancel(context.Background(), id, Actor{ID: "user-2"}, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel error = %v, want %v", err, ErrForbidden)
	}
	if _, err := svc.Cancel(context.Background(), id, Actor{ID: "user-1"}, ""); err != nil {
		t.Fatalf("owner cancel error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), id, Actor{ID: "admin-1", Admin: true}, "ops"); err != nil {
		t.Fatalf("admin cancel error: %v", err)
	}
}

func TestCancel_TerminalStatusRejected(t *testing.T) {
	repo := &fakeBookingRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: id, RequesterID: "user-1", Status: domain.BookingCompleted}, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	_, err := svc.Cancel(context.Background(), uuid.New(), Actor{ID: "user-1"}, "")
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("error = %v, want %v", err, store.ErrInvalidTransition)
	}
}

func TestSweepNoShows_OneEventPerBooking(t *testing.T) {
	bus := &recordingBus{}
	swept := []domain.Booking{
		{ID: uuid.New(), Status: domain.BookingNoShow},
		{ID: uuid.New(), Status: domain.BookingNoShow},
	}
	repo := &fakeBookingRepo{
		sweepFn: func(ctx context.Context, now time.Time) ([]domain.Booking, error) {
			return swept, nil
		},
	}
	svc := NewService(nil, repo, bus, nil)

	n, err := svc.SweepNoShows(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SweepNoShows error: %v", err)
	}
	if n != len(swept) {
		t.Fatalf("swept = %d, want %d", n, len(swept))
	}
	if len(bus.published) != len(swept) {
		t.Fatalf("published %d events, want %d", len(bus.published), len(swept))
	}
	for _, ev := range bus.published {
		if ev.subject != "bookings.status_changed" {
			t.Fatalf("subject = %q, want bookings.status_changed", ev.subject)
		}
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	resID := uuid.New()
	bus := &recordingBus{err: errors.New("nats down")}
	repo := &fakeBookingRepo{
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			b.ID = uuid.New()
			return b, nil
		},
	}
	svc := NewService(resourceRepoWith(openResource(resID)), repo, bus, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		ResourceID:  resID,
		RequesterID: "user-1",
		StartAt:     time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create error: %v, want publish failure swallowed", err)
	}
}

func TestList_ScopesNonAdminToOwnBookings(t *testing.T) {
	var seen store.BookingFilter
	repo := &fakeBookingRepo{
		listFn: func(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
			seen = f
			return nil, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	if _, err := svc.List(context.Background(), Actor{ID: "user-1"}, store.BookingFilter{}); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if seen.RequesterID != "user-1" {
		t.Fatalf("filter requester = %q, want forced to actor", seen.RequesterID)
	}

	if _, err := svc.List(context.Background(), Actor{ID: "user-1"}, store.BookingFilter{RequesterID: "user-2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user list error = %v, want %v", err, ErrForbidden)
	}

	if _, err := svc.List(context.Background(), Actor{ID: "admin-1", Admin: true}, store.BookingFilter{RequesterID: "user-2"}); err != nil {
		t.Fatalf("admin list error: %v", err)
	}
	if seen.RequesterID != "user-2" {
		t.Fatalf("admin filter requester = %q, want user-2", seen.RequesterID)
	}
}

func TestList_RejectsUnknownStatusFilter(t *testing.T) {
	svc := NewService(nil, &fakeBookingRepo{}, &recordingBus{}, nil)

	_, err := svc.List(context.Background(), Actor{ID: "admin-1", Admin: true}, store.BookingFilter{Status: "archived"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
	}
}

func TestGet_VisibilityScopes(t *testing.T) {
	id := uuid.New()
	repo := &fakeBookingRepo{
		getFn: func(ctx context.Context, got uuid.UUID) (domain.Booking, error) {
			if got != id {
				return domain.Booking{}, store.ErrNotFound
			}
			return domain.Booking{ID: id, RequesterID: "user-1"}, nil
		},
	}
	svc := NewService(nil, repo, &recordingBus{}, nil)

	if _, err := svc.Get(context.Background(), id, Actor{ID: "user-1"}); err != nil {
		t.Fatalf("owner get error: %v", err)
	}
	if _, err := svc.Get(context.Background(), id, Actor{ID: "user-2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get error = %v, want %v", err, ErrForbidden)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), Actor{ID: "user-1"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing get error = %v, want %v", err, store.ErrNotFound)
	}
}
