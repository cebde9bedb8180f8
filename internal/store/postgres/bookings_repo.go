package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

const noOverlapConstraint = "bookings_no_overlap"

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// Create inserts a pending booking after re-validating, at commit time, that
// no active booking on the same resource overlaps it. Check and insert run
// inside one transaction holding the resource's advisory lock, so two racing
// creations for the same resource are linearized; creations for different
// resources never contend. The exclusion constraint is the storage-level
// backstop for the same invariant.
func (r *BookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.InResourceTransaction(ctx, b.ResourceID, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*domain.Booking)(nil)).
			Where("resource_id = ?", b.ResourceID).
			Where("status IN (?)", bun.In(domain.ActiveStatuses)).
			Where("start_at < ?", b.EndAt).
			Where("end_at > ?", b.StartAt).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return store.ErrConflict
		}

		if _, err := tx.NewInsert().Model(&b).Exec(ctx); err != nil {
			return mapInsertError(err)
		}

		ev := domain.BookingEvent{
			BookingID: b.ID,
			ToStatus:  b.Status,
			Actor:     b.RequesterID,
		}
		if _, err := tx.NewInsert().Model(&ev).Exec(ctx); err != nil {
			return err
		}

		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepo) List(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	var rows []domain.Booking
	q := r.db.NewSelect().Model(&rows)
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.ResourceID != uuid.Nil {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	err := q.
		OrderExpr("start_at ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) ListActiveInWindow(ctx context.Context, resourceID uuid.UUID, window domain.Interval) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("resource_id = ?", resourceID).
		Where("status IN (?)", bun.In(domain.ActiveStatuses)).
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition applies one status change as a conditional update. Zero rows
// affected means the booking either does not exist or is no longer in the
// expected status; duplicate submissions therefore fail instead of silently
// succeeding.
func (r *BookingRepo) Transition(ctx context.Context, t store.Transition) (domain.Booking, error) {
	var out domain.Booking
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()

		q := tx.NewUpdate().
			Model((*domain.Booking)(nil)).
			Set("status = ?", t.To).
			Set("updated_at = ?", now).
			Where("id = ?", t.BookingID).
			Where("status = ?", t.From)

		if t.Decision {
			q = q.Set("decided_at = ?", now).Set("decided_by = ?", t.Actor)
		}
		if t.To == domain.BookingCancelled && t.Reason != "" {
			if t.Decision {
				q = q.Set("denied_reason = ?", t.Reason)
			} else {
				q = q.Set("cancelled_reason = ?", t.Reason)
			}
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().
				Model((*domain.Booking)(nil)).
				Where("id = ?", t.BookingID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return store.ErrNotFound
			}
			return store.ErrInvalidTransition
		}

		ev := domain.BookingEvent{
			BookingID:  t.BookingID,
			FromStatus: t.From,
			ToStatus:   t.To,
			Actor:      t.Actor,
			Reason:     t.Reason,
		}
		if _, err := tx.NewInsert().Model(&ev).Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().
			Model(&out).
			Where("id = ?", t.BookingID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// SweepNoShows is the periodic evaluation of the time-driven no_show rule:
// confirmed bookings whose interval has fully elapsed flip to no_show in one
// conditional update, with one audit event each.
func (r *BookingRepo) SweepNoShows(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	var swept []domain.Booking
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewUpdate().
			Model((*domain.Booking)(nil)).
			Set("status = ?", domain.BookingNoShow).
			Set("updated_at = ?", now.UTC()).
			Where("status = ?", domain.BookingConfirmed).
			Where("end_at <= ?", now.UTC()).
			Returning("*").
			Scan(ctx, &swept)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if len(swept) == 0 {
			return nil
		}

		evs := make([]domain.BookingEvent, 0, len(swept))
		for _, b := range swept {
			evs = append(evs, domain.BookingEvent{
				BookingID:  b.ID,
				FromStatus: domain.BookingConfirmed,
				ToStatus:   domain.BookingNoShow,
				Actor:      "system",
			})
		}
		_, err = tx.NewInsert().Model(&evs).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

func (r *BookingRepo) ListEvents(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingEvent, error) {
	var rows []domain.BookingEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("booking_id = ?", bookingID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InResourceTransaction runs fn inside a transaction holding the resource's
// advisory lock, serializing booking writers per resource.
func (r *BookingRepo) InResourceTransaction(ctx context.Context, resourceID uuid.UUID, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockResource(ctx, tx, resourceID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func lockResource(ctx context.Context, tx bun.Tx, resourceID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", resourceID.String()).Exec(ctx)
	return err
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == noOverlapConstraint {
		return store.ErrConflict
	}
	return err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
