package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
)

// ParseAppointmentStatus is the single normalization point for status strings.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return AppointmentStatusPending, nil
	case "confirmed", "accepted":
		return AppointmentStatusConfirmed, nil
	case "completed", "done":
		return AppointmentStatusCompleted, nil
	case "cancelled", "canceled":
		return AppointmentStatusCancelled, nil
	case "rejected", "declined":
		return AppointmentStatusRejected, nil
	case "scheduled":
		return AppointmentStatusScheduled, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Active reports whether the appointment still occupies its time range.
// Cancelled and rejected rows release their slot and never count toward
// overlap checks.
func (s AppointmentStatus) Active() bool {
	switch s {
	case AppointmentStatusCancelled, AppointmentStatusRejected:
		return false
	}
	return true
}

func (s AppointmentStatus) Label() string {
	switch s {
	case AppointmentStatusPending:
		return "Pending"
	case AppointmentStatusConfirmed:
		return "Confirmed"
	case AppointmentStatusCompleted:
		return "Completed"
	case AppointmentStatusCancelled:
		return "Cancelled"
	case AppointmentStatusRejected:
		return "Rejected"
	case AppointmentStatusScheduled:
		return "Scheduled"
	}
	return string(s)
}

// ActiveAppointmentStatuses is the status set used when loading appointments
// that still occupy provider time.
func ActiveAppointmentStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		AppointmentStatusPending,
		AppointmentStatusConfirmed,
		AppointmentStatusCompleted,
		AppointmentStatusScheduled,
	}
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                  uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID          uuid.UUID         `bun:"provider_id,notnull,type:uuid"`
	ClientID            uuid.UUID         `bun:"client_id,notnull,type:uuid"`
	ListingID           uuid.UUID         `bun:"listing_id,notnull,type:uuid"`
	StartTime           time.Time         `bun:"start_time,notnull"`
	EndTime             time.Time         `bun:"end_time,notnull"`
	Status              AppointmentStatus `bun:"status,notnull"`
	Recurrence          RecurrenceType    `bun:"recurrence,notnull"`
	IsRecurringInstance bool              `bun:"is_recurring_instance,notnull"`
	RecurringRuleID     *uuid.UUID        `bun:"recurring_rule_id,type:uuid"`
	RecurrenceGroupID   *uuid.UUID        `bun:"recurrence_group_id,type:uuid"`
	ExternalBooking     bool              `bun:"external_booking,notnull"`
	FinalPrice          int64             `bun:"final_price,notnull"`
	Notes               string            `bun:"notes"`
	ClientName          string            `bun:"client_name"`
	ClientAddress       string            `bun:"client_address"`
	CreatedAt           time.Time         `bun:"created_at,notnull"`
	UpdatedAt           time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
