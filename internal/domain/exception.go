package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ExceptionAction string

const (
	ExceptionCancelled   ExceptionAction = "cancelled"
	ExceptionRescheduled ExceptionAction = "rescheduled"
	ExceptionSkip        ExceptionAction = "skip"
)

func ParseExceptionAction(s string) (ExceptionAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancelled", "canceled":
		return ExceptionCancelled, nil
	case "rescheduled":
		return ExceptionRescheduled, nil
	case "skip", "skipped":
		return ExceptionSkip, nil
	}
	return "", fmt.Errorf("unknown exception action %q", s)
}

// RecurringException overrides one occurrence of a series without touching
// the rest. At most one exception exists per (rule, exception date); the
// store enforces this with an upsert on that key. Deleting the exception
// restores the occurrence to its default schedule.
type RecurringException struct {
	bun.BaseModel `bun:"table:recurring_exceptions"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid"`
	RuleID        uuid.UUID       `bun:"rule_id,notnull,type:uuid"`
	ExceptionDate time.Time       `bun:"exception_date,notnull"`
	OriginalDate  time.Time       `bun:"original_date,notnull"`
	Action        ExceptionAction `bun:"action,notnull"`
	NewStartTime  *time.Time      `bun:"new_start_time"`
	NewEndTime    *time.Time      `bun:"new_end_time"`
	Notes         string          `bun:"notes"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

func (e *RecurringException) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

type OccurrenceStatus string

const (
	OccurrenceScheduled   OccurrenceStatus = "scheduled"
	OccurrenceCancelled   OccurrenceStatus = "cancelled"
	OccurrenceRescheduled OccurrenceStatus = "rescheduled"
)

// ResolvedOccurrence is an occurrence after exceptions have been applied.
// Cancelled occurrences keep their original times so callers can show what
// was dropped; they must not be materialized as bookable instances.
type ResolvedOccurrence struct {
	Occurrence
	Status        OccurrenceStatus
	OriginalStart time.Time
	Notes         string
}

const exceptionDayLayout = "2006-01-02"

func exceptionKey(ruleID uuid.UUID, day time.Time) string {
	return ruleID.String() + "/" + day.UTC().Format(exceptionDayLayout)
}

// ResolveExceptions applies stored exceptions to expanded occurrences.
// Exceptions are matched by (rule, calendar day); a rescheduled exception is
// also matched by its original date so an occurrence the exception moved
// away from never re-materializes at the default slot. Each exception is
// applied at most once.
func ResolveExceptions(occs []Occurrence, exs []RecurringException) []ResolvedOccurrence {
	if len(occs) == 0 {
		return nil
	}

	byDay := make(map[string]*RecurringException, len(exs))
	for i := range exs {
		ex := &exs[i]
		byDay[exceptionKey(ex.RuleID, ex.ExceptionDate)] = ex
		if ex.Action == ExceptionRescheduled && !ex.OriginalDate.IsZero() {
			key := exceptionKey(ex.RuleID, ex.OriginalDate)
			if _, taken := byDay[key]; !taken {
				byDay[key] = ex
			}
		}
	}

	applied := make(map[uuid.UUID]bool, len(exs))
	out := make([]ResolvedOccurrence, 0, len(occs))
	for _, o := range occs {
		ex, ok := byDay[exceptionKey(o.RuleID, o.StartTime)]
		if !ok {
			out = append(out, ResolvedOccurrence{
				Occurrence:    o,
				Status:        OccurrenceScheduled,
				OriginalStart: o.StartTime,
			})
			continue
		}

		if applied[ex.ID] {
			// A second candidate landed on a date this exception already
			// covers (reschedule away from it). Suppress the duplicate.
			continue
		}
		applied[ex.ID] = true

		switch ex.Action {
		case ExceptionCancelled, ExceptionSkip:
			out = append(out, ResolvedOccurrence{
				Occurrence:    o,
				Status:        OccurrenceCancelled,
				OriginalStart: o.StartTime,
				Notes:         ex.Notes,
			})
		case ExceptionRescheduled:
			r := ResolvedOccurrence{
				Occurrence:    o,
				Status:        OccurrenceRescheduled,
				OriginalStart: o.StartTime,
				Notes:         ex.Notes,
			}
			if ex.NewStartTime != nil {
				r.StartTime = ex.NewStartTime.UTC()
			}
			if ex.NewEndTime != nil {
				r.EndTime = ex.NewEndTime.UTC()
			}
			out = append(out, r)
		default:
			out = append(out, ResolvedOccurrence{
				Occurrence:    o,
				Status:        OccurrenceScheduled,
				OriginalStart: o.StartTime,
			})
		}
	}
	return out
}

// InboundReschedules materializes rescheduled occurrences whose new time
// falls inside [windowStart, windowEnd) while their original date does not.
// Without this a reschedule landing far from its source day would vanish:
// expansion never produces a candidate on the destination date, so
// ResolveExceptions has nothing to substitute into. resolved holds the
// occurrences already produced for the window; anything it already covers is
// skipped.
func InboundReschedules(resolved []ResolvedOccurrence, exs []RecurringException, rules map[uuid.UUID]RecurringRule, windowStart, windowEnd time.Time) []ResolvedOccurrence {
	seen := make(map[InstanceKey]struct{}, len(resolved))
	for _, r := range resolved {
		if r.Status == OccurrenceRescheduled {
			seen[NewInstanceKey(r.ProviderID, r.StartTime, r.EndTime)] = struct{}{}
		}
	}

	startUTC := windowStart.UTC()
	endUTC := windowEnd.UTC()

	var out []ResolvedOccurrence
	for i := range exs {
		ex := exs[i]
		if ex.Action != ExceptionRescheduled || ex.NewStartTime == nil {
			continue
		}
		rule, ok := rules[ex.RuleID]
		if !ok {
			continue
		}

		newStart := ex.NewStartTime.UTC()
		var newEnd time.Time
		if ex.NewEndTime != nil {
			newEnd = ex.NewEndTime.UTC()
		} else {
			startMinutes, errStart := parseClockMinutes(rule.StartTime)
			endMinutes, errEnd := parseClockMinutes(rule.EndTime)
			if errStart != nil || errEnd != nil || endMinutes <= startMinutes {
				continue
			}
			newEnd = newStart.Add(time.Duration(endMinutes-startMinutes) * time.Minute)
		}
		if !newStart.Before(endUTC) || !newEnd.After(startUTC) {
			continue
		}

		key := NewInstanceKey(rule.ProviderID, newStart, newEnd)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		out = append(out, ResolvedOccurrence{
			Occurrence: Occurrence{
				RuleID:     ex.RuleID,
				ClientID:   rule.ClientID,
				ProviderID: rule.ProviderID,
				ListingID:  rule.ListingID,
				StartTime:  newStart,
				EndTime:    newEnd,
			},
			Status:        OccurrenceRescheduled,
			OriginalStart: ex.OriginalDate.UTC(),
			Notes:         ex.Notes,
		})
	}
	return out
}
