package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

type SlotRepo struct {
	db *bun.DB
}

func NewSlotRepo(db *bun.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

func (r *SlotRepo) GetSlots(ctx context.Context, providerID, listingID uuid.UUID, from, to time.Time) ([]domain.TimeSlot, error) {
	var rows []domain.TimeSlot
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("listing_id = ?", listingID).
		Where("slot_datetime_start < ?", to).
		Where("slot_datetime_end > ?", from).
		OrderExpr("slot_datetime_start ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AcquireSlots locks every requested slot in one transaction. The UPDATE
// predicate (available, not reserved, no unexpired lock) is what provides
// mutual exclusion between concurrent checkouts: if the affected row count
// falls short of the request the transaction rolls back, leaving every slot
// untouched.
func (r *SlotRepo) AcquireSlots(ctx context.Context, slotIDs []uuid.UUID, until time.Time) error {
	if len(slotIDs) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*domain.TimeSlot)(nil)).
			Set("blocked_until = ?", until.UTC()).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(slotIDs)).
			Where("is_available").
			Where("NOT is_reserved").
			Where("(blocked_until IS NULL OR blocked_until <= ?)", now).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(len(slotIDs)) {
			return store.ErrSlotsUnavailable
		}
		return nil
	})
}

func (r *SlotRepo) ReleaseSlots(ctx context.Context, slotIDs []uuid.UUID) error {
	if len(slotIDs) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().
		Model((*domain.TimeSlot)(nil)).
		Set("blocked_until = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id IN (?)", bun.In(slotIDs)).
		Exec(ctx)
	return err
}

// ReserveSlots flips locked slots to reserved. The predicate excludes slots
// another party reserved in the meantime, so completing a stale checkout
// cannot steal a slot.
func (r *SlotRepo) ReserveSlots(ctx context.Context, slotIDs []uuid.UUID) error {
	if len(slotIDs) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*domain.TimeSlot)(nil)).
			Set("is_reserved = ?", true).
			Set("is_available = ?", false).
			Set("blocked_until = NULL").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id IN (?)", bun.In(slotIDs)).
			Where("NOT is_reserved").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(len(slotIDs)) {
			return store.ErrSlotsUnavailable
		}
		return nil
	})
}

func (r *SlotRepo) ReleaseAppointmentSlots(ctx context.Context, providerID uuid.UUID, start, end time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*domain.TimeSlot)(nil)).
		Set("is_reserved = ?", false).
		Set("is_available = ?", true).
		Set("blocked_until = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("provider_id = ?", providerID).
		Where("slot_datetime_start < ?", end).
		Where("slot_datetime_end > ?", start).
		Where("slot_type = ?", domain.SlotTypeNormal).
		Exec(ctx)
	return err
}
