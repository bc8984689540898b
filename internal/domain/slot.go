package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SlotType string

const (
	SlotTypeNormal          SlotType = "normal"
	SlotTypeManuallyBlocked SlotType = "manually_blocked"
)

// TimeSlot is a discrete bookable unit of provider time. is_available and
// is_reserved are mutually exclusive; blocked_until is the checkout lock
// expiry and a past value counts as unlocked.
type TimeSlot struct {
	bun.BaseModel `bun:"table:provider_time_slots"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid"`
	ProviderID       uuid.UUID  `bun:"provider_id,notnull,type:uuid"`
	ListingID        uuid.UUID  `bun:"listing_id,notnull,type:uuid"`
	SlotDate         time.Time  `bun:"slot_date,notnull"`
	SlotStart        time.Time  `bun:"slot_datetime_start,notnull"`
	SlotEnd          time.Time  `bun:"slot_datetime_end,notnull"`
	IsAvailable      bool       `bun:"is_available,notnull"`
	IsReserved       bool       `bun:"is_reserved,notnull"`
	RecurringBlocked bool       `bun:"recurring_blocked,notnull"`
	BlockedUntil     *time.Time `bun:"blocked_until"`
	SlotType         SlotType   `bun:"slot_type,notnull"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull"`
}

func (s *TimeSlot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.SlotType == "" {
			s.SlotType = SlotTypeNormal
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// Locked reports whether the slot holds an unexpired checkout lock at the
// given instant. Expired locks self-heal: they simply stop counting.
func (s *TimeSlot) Locked(now time.Time) bool {
	return s.BlockedUntil != nil && s.BlockedUntil.After(now)
}

// Bookable reports whether the slot can be offered to a new party.
func (s *TimeSlot) Bookable(now time.Time) bool {
	return s.IsAvailable && !s.IsReserved && !s.Locked(now)
}

// AvailabilitySlot is one cell of a provider's availability grid: a
// candidate start/end pair plus whether it can be offered, and the conflict
// reason when it cannot.
type AvailabilitySlot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// BlockedTimeSlot is a provider-defined recurring unavailability window:
// a day of week plus an hour range, independent of any appointment.
type BlockedTimeSlot struct {
	bun.BaseModel `bun:"table:blocked_time_slots"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	DayOfWeek  int       `bun:"day_of_week,notnull"`
	StartHour  int       `bun:"start_hour,notnull"`
	EndHour    int       `bun:"end_hour,notnull"`
	Note       string    `bun:"note"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (b *BlockedTimeSlot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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

// Covers reports whether the blocked window overlaps [start, end) on the
// window's weekday. The comparison is hour-granular, matching how providers
// define these blocks.
func (b *BlockedTimeSlot) Covers(start, end time.Time) bool {
	for d := dateOf(start); !d.After(dateOf(end)); d = d.AddDate(0, 0, 1) {
		if int(d.Weekday()) != b.DayOfWeek {
			continue
		}
		blockStart := d.Add(time.Duration(b.StartHour) * time.Hour)
		blockEnd := d.Add(time.Duration(b.EndHour) * time.Hour)
		if start.Before(blockEnd) && end.After(blockStart) {
			return true
		}
	}
	return false
}
