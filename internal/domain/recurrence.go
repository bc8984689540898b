package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RecurrenceType string

const (
	RecurrenceNone      RecurrenceType = "none"
	RecurrenceWeekly    RecurrenceType = "weekly"
	RecurrenceBiweekly  RecurrenceType = "biweekly"
	RecurrenceTriweekly RecurrenceType = "triweekly"
	RecurrenceMonthly   RecurrenceType = "monthly"
)

// ParseRecurrenceType is the canonical recurrence parser. Every place that
// reads a cadence string goes through it; there is deliberately no second
// normalization path.
func ParseRecurrenceType(s string) (RecurrenceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "once", "single":
		return RecurrenceNone, nil
	case "weekly":
		return RecurrenceWeekly, nil
	case "biweekly", "bi-weekly", "fortnightly":
		return RecurrenceBiweekly, nil
	case "triweekly", "tri-weekly":
		return RecurrenceTriweekly, nil
	case "monthly":
		return RecurrenceMonthly, nil
	}
	return "", fmt.Errorf("unknown recurrence type %q", s)
}

// StepDays returns the stride in days for the weekly cadence family, or 0
// for cadences that do not step by a fixed number of days.
func (t RecurrenceType) StepDays() int {
	switch t {
	case RecurrenceWeekly:
		return 7
	case RecurrenceBiweekly:
		return 14
	case RecurrenceTriweekly:
		return 21
	}
	return 0
}

func (t RecurrenceType) Label() string {
	switch t {
	case RecurrenceNone:
		return "One-time"
	case RecurrenceWeekly:
		return "Every week"
	case RecurrenceBiweekly:
		return "Every 2 weeks"
	case RecurrenceTriweekly:
		return "Every 3 weeks"
	case RecurrenceMonthly:
		return "Every month"
	}
	return string(t)
}

// RecurringRule is a standing booking agreement between a client and a
// provider. It is deactivated, never deleted, when the client cancels the
// whole series.
type RecurringRule struct {
	bun.BaseModel `bun:"table:recurring_rules"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	ClientID   uuid.UUID      `bun:"client_id,notnull,type:uuid"`
	ProviderID uuid.UUID      `bun:"provider_id,notnull,type:uuid"`
	ListingID  uuid.UUID      `bun:"listing_id,notnull,type:uuid"`
	Recurrence RecurrenceType `bun:"recurrence,notnull"`
	StartDate  time.Time      `bun:"start_date,notnull"`
	StartTime  string         `bun:"start_time,notnull"`
	EndTime    string         `bun:"end_time,notnull"`
	DayOfWeek  int            `bun:"day_of_week,notnull"`
	DayOfMonth int            `bun:"day_of_month,notnull"`
	Timezone   string         `bun:"timezone"`
	IsActive   bool           `bun:"is_active,notnull"`
	ClientName string         `bun:"client_name"`
	Notes      string         `bun:"notes"`
	Address    string         `bun:"address"`
	Phone      string         `bun:"phone"`
	Email      string         `bun:"email"`
	CreatedAt  time.Time      `bun:"created_at,notnull"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull"`
}

func (r *RecurringRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Occurrence is one candidate instance computed from a rule. It is not
// backed by a persisted appointment row.
type Occurrence struct {
	RuleID     uuid.UUID
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	ListingID  uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
}

// MaxOccurrencesPerRule caps expansion so a malformed rule can never produce
// unbounded output.
const MaxOccurrencesPerRule = 50

const clockLayout = "15:04"

// ExpandRule expands a recurring rule into concrete occurrences within
// [windowStart, windowEnd]. Weekly-family rules align forward to the rule's
// day of week and then step by 7, 14 or 21 days; monthly rules pin the
// rule's day of month, clamped to the last valid day of shorter months.
// Output is ascending by start time with no duplicate dates. Callers treat
// an error as "no occurrences" and log it as a warning; an empty calendar
// is a safe degradation.
func ExpandRule(rule RecurringRule, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if !rule.IsActive {
		return nil, errors.New("rule is not active")
	}
	if windowEnd.Before(windowStart) {
		return nil, errors.New("window_end must not be before window_start")
	}

	loc := time.UTC
	if tz := strings.TrimSpace(rule.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, errors.New("invalid timezone")
		}
		loc = l
	}

	startMinutes, err := parseClockMinutes(rule.StartTime)
	if err != nil {
		return nil, errors.New("invalid start_time")
	}
	endMinutes, err := parseClockMinutes(rule.EndTime)
	if err != nil {
		return nil, errors.New("invalid end_time")
	}
	if endMinutes <= startMinutes {
		return nil, errors.New("end_time must be after start_time")
	}

	windowStartDay := dateOf(windowStart.In(loc))
	windowEndDay := dateOf(windowEnd.In(loc))
	ruleStartDay := dateOf(rule.StartDate.In(loc))
	if ruleStartDay.After(windowEndDay) {
		return nil, nil
	}

	base := ruleStartDay
	if windowStartDay.After(base) {
		base = windowStartDay
	}

	var dates []time.Time
	switch rule.Recurrence {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceTriweekly:
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			return nil, errors.New("invalid day_of_week")
		}
		dates = expandWeekly(ruleStartDay, base, windowEndDay, rule.DayOfWeek, rule.Recurrence.StepDays())
	case RecurrenceMonthly:
		if rule.DayOfMonth < 1 || rule.DayOfMonth > 31 {
			return nil, errors.New("invalid day_of_month")
		}
		dates = expandMonthly(base, windowEndDay, rule.DayOfMonth)
	default:
		return nil, fmt.Errorf("unsupported recurrence type %q", rule.Recurrence)
	}

	out := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		start := time.Date(d.Year(), d.Month(), d.Day(), startMinutes/60, startMinutes%60, 0, 0, loc)
		end := time.Date(d.Year(), d.Month(), d.Day(), endMinutes/60, endMinutes%60, 0, 0, loc)
		out = append(out, Occurrence{
			RuleID:     rule.ID,
			ClientID:   rule.ClientID,
			ProviderID: rule.ProviderID,
			ListingID:  rule.ListingID,
			StartTime:  start.UTC(),
			EndTime:    end.UTC(),
		})
	}
	return out, nil
}

// expandWeekly advances forward, never backward, to the nearest date on the
// wanted weekday, then steps by the cadence stride. The stride phase is
// anchored to the rule's start date, so every query window agrees on which
// alternating weeks a biweekly or triweekly rule occupies.
func expandWeekly(ruleStartDay, base, windowEndDay time.Time, dayOfWeek, stepDays int) []time.Time {
	offset := (dayOfWeek - int(ruleStartDay.Weekday()) + 7) % 7
	d := ruleStartDay.AddDate(0, 0, offset)
	if d.Before(base) {
		days := daysBetween(d, base)
		steps := days / stepDays
		if days%stepDays != 0 {
			steps++
		}
		d = d.AddDate(0, 0, steps*stepDays)
	}

	var dates []time.Time
	for !d.After(windowEndDay) && len(dates) < MaxOccurrencesPerRule {
		dates = append(dates, d)
		d = d.AddDate(0, 0, stepDays)
	}
	return dates
}

// daysBetween counts whole calendar days from a to b, ignoring wall-clock
// offsets so DST transitions cannot skew the stride arithmetic.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// expandMonthly steps month by month, pinning the rule's day of month and
// clamping it to the last valid day when the target month is shorter.
func expandMonthly(base, windowEndDay time.Time, dayOfMonth int) []time.Time {
	year, month := base.Year(), base.Month()

	var dates []time.Time
	for len(dates) < MaxOccurrencesPerRule {
		day := dayOfMonth
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		d := time.Date(year, month, day, 0, 0, 0, 0, base.Location())
		if d.After(windowEndDay) {
			break
		}
		if !d.Before(base) {
			dates = append(dates, d)
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return dates
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseClockMinutes(s string) (int, error) {
	tm, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return tm.Hour()*60 + tm.Minute(), nil
}
