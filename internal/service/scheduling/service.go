// Package scheduling is the calendar core: it expands recurring rules into
// concrete occurrences, reconciles them with persisted appointments and
// exceptions, and validates proposed bookings against every commitment a
// provider already has.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
	"github.com/GAMA-00/gato-app-sub003/internal/retry"
	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// AvailabilityCache caches computed availability grids. Entries expire on a
// bounded TTL; Invalidate drops everything cached for one provider.
type AvailabilityCache interface {
	Get(ctx context.Context, key string) ([]domain.AvailabilitySlot, bool, error)
	Set(ctx context.Context, key string, slots []domain.AvailabilitySlot) error
	Invalidate(ctx context.Context, providerID uuid.UUID) error
}

const (
	DefaultWorkDayStartHour = 7
	DefaultWorkDayEndHour   = 19
)

type Params struct {
	Schedule store.ScheduleStore
	Slots    store.SlotStore
	Cache    AvailabilityCache
	Log      *slog.Logger

	// Working-day bounds for the availability grid, in provider-local
	// hours. Zero values fall back to 07:00–19:00.
	WorkDayStartHour int
	WorkDayEndHour   int

	Retry retry.Policy
}

type Service struct {
	schedule store.ScheduleStore
	slots    store.SlotStore
	cache    AvailabilityCache
	log      *slog.Logger

	workDayStart int
	workDayEnd   int
	retry        retry.Policy
}

func NewService(p Params) *Service {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	workStart := p.WorkDayStartHour
	workEnd := p.WorkDayEndHour
	if workStart == 0 && workEnd == 0 {
		workStart = DefaultWorkDayStartHour
		workEnd = DefaultWorkDayEndHour
	}
	pol := p.Retry
	if pol.MaxAttempts == 0 {
		pol = retry.DefaultPolicy()
	}
	return &Service{
		schedule:     p.Schedule,
		slots:        p.Slots,
		cache:        p.Cache,
		log:          log.With(slog.String("component", "scheduling")),
		workDayStart: workStart,
		workDayEnd:   workEnd,
		retry:        pol,
	}
}

// ListInstances returns every calendar entry for the provider in the
// window: persisted appointments plus virtual occurrences expanded from
// active rules with exceptions applied, deduplicated with persisted rows
// winning, ascending by start time.
func (s *Service) ListInstances(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Instance, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	appts, err := s.schedule.ListProviderAppointments(ctx, providerID, domain.ActiveAppointmentStatuses(), start, end)
	if err != nil {
		return nil, err
	}

	resolved, rulesByID, err := s.resolvedOccurrences(ctx, providerID, start, end)
	if err != nil {
		return nil, err
	}

	persisted := make([]domain.Instance, 0, len(appts))
	for _, a := range appts {
		persisted = append(persisted, domain.InstanceFromAppointment(a))
	}

	virtual := make([]domain.Instance, 0, len(resolved))
	for _, o := range resolved {
		if o.Status == domain.OccurrenceCancelled {
			continue
		}
		virtual = append(virtual, domain.InstanceFromOccurrence(o, rulesByID[o.RuleID]))
	}

	return domain.MergeInstances(persisted, virtual), nil
}

// resolvedOccurrences expands every active rule of the provider over the
// window and applies stored exceptions. A rule that fails to expand is
// logged and skipped: an empty calendar for one malformed rule is a safe
// degradation, not a fatal error.
func (s *Service) resolvedOccurrences(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.ResolvedOccurrence, map[uuid.UUID]domain.RecurringRule, error) {
	rules, err := s.schedule.ListActiveRecurringRules(ctx, providerID)
	if err != nil {
		return nil, nil, err
	}
	if len(rules) == 0 {
		return nil, nil, nil
	}

	rulesByID := make(map[uuid.UUID]domain.RecurringRule, len(rules))
	ruleIDs := make([]uuid.UUID, 0, len(rules))
	var occs []domain.Occurrence
	for _, rule := range rules {
		expanded, err := domain.ExpandRule(rule, windowStart, windowEnd)
		if err != nil {
			s.log.Warn("rule expansion failed",
				slog.String("rule_id", rule.ID.String()),
				slog.String("recurrence", string(rule.Recurrence)),
				slog.Any("err", err),
			)
			continue
		}
		rulesByID[rule.ID] = rule
		ruleIDs = append(ruleIDs, rule.ID)
		occs = append(occs, expanded...)
	}
	if len(ruleIDs) == 0 {
		return nil, rulesByID, nil
	}

	exs, err := s.schedule.ListExceptions(ctx, ruleIDs)
	if err != nil {
		return nil, nil, err
	}

	resolved := domain.ResolveExceptions(occs, exs)
	// An occurrence rescheduled into this window from a day outside it has
	// no expansion candidate here; materialize it from the exception itself.
	resolved = append(resolved, domain.InboundReschedules(resolved, exs, rulesByID, windowStart, windowEnd)...)
	return resolved, rulesByID, nil
}

type BookInput struct {
	ProviderID      uuid.UUID
	ClientID        uuid.UUID
	ListingID       uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	Recurrence      domain.RecurrenceType
	FinalPrice      int64
	Notes           string
	ClientName      string
	ClientAddress   string
	ExternalBooking bool
}

// Book creates a pending appointment after validating the slot. A conflict
// surfaces as store.ErrConflict and is never retried into a different slot;
// transient store errors are retried with bounded backoff.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.ProviderID == uuid.Nil {
		return domain.Appointment{}, validationError("provider_id is required")
	}
	if in.ClientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	check, err := s.CheckConflict(ctx, in.ProviderID, start, end, nil)
	if err != nil {
		return domain.Appointment{}, err
	}
	if check.Conflict {
		return domain.Appointment{}, store.ErrConflict
	}

	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = domain.RecurrenceNone
	}

	appt := domain.Appointment{
		ProviderID:      in.ProviderID,
		ClientID:        in.ClientID,
		ListingID:       in.ListingID,
		StartTime:       start,
		EndTime:         end,
		Status:          domain.AppointmentStatusPending,
		Recurrence:      recurrence,
		ExternalBooking: in.ExternalBooking,
		FinalPrice:      in.FinalPrice,
		Notes:           in.Notes,
		ClientName:      in.ClientName,
		ClientAddress:   in.ClientAddress,
	}

	var created domain.Appointment
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.schedule.CreateAppointment(ctx, appt)
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.invalidateAvailability(ctx, in.ProviderID)

	s.log.Info("appointment booked",
		slog.String("appointment_id", created.ID.String()),
		slog.String("provider_id", created.ProviderID.String()),
		slog.Time("start_time", created.StartTime),
		slog.Time("end_time", created.EndTime),
	)
	return created, nil
}

// UpdateAppointmentStatus applies a lifecycle transition. Cancelling or
// rejecting releases the slots the appointment occupied.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) error {
	if appointmentID == uuid.Nil {
		return validationError("appointment_id is required")
	}

	appt, err := s.schedule.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}

	if err := s.schedule.UpdateAppointmentStatus(ctx, appointmentID, status); err != nil {
		return err
	}

	if !status.Active() {
		if err := s.slots.ReleaseAppointmentSlots(ctx, appt.ProviderID, appt.StartTime, appt.EndTime); err != nil {
			return err
		}
	}
	s.invalidateAvailability(ctx, appt.ProviderID)

	s.log.Info("appointment status updated",
		slog.String("appointment_id", appointmentID.String()),
		slog.String("status", string(status)),
	)
	return nil
}

// CancelOccurrence cancels a single future occurrence of a series without
// touching the rest.
func (s *Service) CancelOccurrence(ctx context.Context, ruleID uuid.UUID, date time.Time, notes string) error {
	if ruleID == uuid.Nil {
		return validationError("rule_id is required")
	}

	rule, err := s.schedule.GetRecurringRule(ctx, ruleID)
	if err != nil {
		return err
	}

	day := date.UTC().Truncate(24 * time.Hour)
	_, err = s.schedule.UpsertException(ctx, domain.RecurringException{
		RuleID:        ruleID,
		ExceptionDate: day,
		OriginalDate:  day,
		Action:        domain.ExceptionCancelled,
		Notes:         notes,
	})
	if err != nil {
		return err
	}

	s.invalidateAvailability(ctx, rule.ProviderID)
	return nil
}

// RescheduleOccurrence moves a single occurrence to a new time. The new
// time is conflict-validated against the provider's other commitments
// before the exception is written.
func (s *Service) RescheduleOccurrence(ctx context.Context, ruleID uuid.UUID, date time.Time, newStart, newEnd time.Time, notes string) error {
	if ruleID == uuid.Nil {
		return validationError("rule_id is required")
	}
	start := newStart.UTC()
	end := newEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return validationError("new_end_time must be after new_start_time")
	}

	rule, err := s.schedule.GetRecurringRule(ctx, ruleID)
	if err != nil {
		return err
	}

	day := date.UTC().Truncate(24 * time.Hour)

	// The occurrence being moved is excluded from the check: shifting a
	// slot within its own current range must not conflict with itself.
	check, err := s.checkConflict(ctx, rule.ProviderID, start, end, nil, &occurrenceRef{ruleID: ruleID, day: day})
	if err != nil {
		return err
	}
	if check.Conflict {
		return store.ErrConflict
	}

	_, err = s.schedule.UpsertException(ctx, domain.RecurringException{
		RuleID:        ruleID,
		ExceptionDate: day,
		OriginalDate:  day,
		Action:        domain.ExceptionRescheduled,
		NewStartTime:  &start,
		NewEndTime:    &end,
		Notes:         notes,
	})
	if err != nil {
		return err
	}

	s.invalidateAvailability(ctx, rule.ProviderID)
	return nil
}

// RestoreOccurrence deletes the exception for the date, returning the
// occurrence to its default schedule.
func (s *Service) RestoreOccurrence(ctx context.Context, ruleID uuid.UUID, date time.Time) error {
	if ruleID == uuid.Nil {
		return validationError("rule_id is required")
	}

	rule, err := s.schedule.GetRecurringRule(ctx, ruleID)
	if err != nil {
		return err
	}

	day := date.UTC().Truncate(24 * time.Hour)
	if err := s.schedule.DeleteException(ctx, ruleID, day); err != nil {
		return err
	}

	s.invalidateAvailability(ctx, rule.ProviderID)
	return nil
}

// DeactivateRule ends a series. The rule row survives for history; it just
// stops expanding.
func (s *Service) DeactivateRule(ctx context.Context, ruleID uuid.UUID) error {
	if ruleID == uuid.Nil {
		return validationError("rule_id is required")
	}

	rule, err := s.schedule.GetRecurringRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if err := s.schedule.DeactivateRule(ctx, ruleID); err != nil {
		return err
	}

	s.invalidateAvailability(ctx, rule.ProviderID)
	s.log.Info("recurring rule deactivated", slog.String("rule_id", ruleID.String()))
	return nil
}

// InvalidateAvailability drops cached availability for the provider. It is
// the entry point external change events call into.
func (s *Service) InvalidateAvailability(ctx context.Context, providerID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, providerID)
}

// ConsumeInvalidations drains provider change events from the channel until
// it closes or the context ends. Callers wire external notification systems
// to this instead of reaching into the cache.
func (s *Service) ConsumeInvalidations(ctx context.Context, events <-chan uuid.UUID) {
	for {
		select {
		case <-ctx.Done():
			return
		case providerID, ok := <-events:
			if !ok {
				return
			}
			if err := s.InvalidateAvailability(ctx, providerID); err != nil {
				s.log.Warn("availability invalidation failed",
					slog.String("provider_id", providerID.String()),
					slog.Any("err", err),
				)
			}
		}
	}
}

// invalidateAvailability is the best-effort internal variant: cache misses
// are cheaper than failing the triggering write.
func (s *Service) invalidateAvailability(ctx context.Context, providerID uuid.UUID) {
	if err := s.InvalidateAvailability(ctx, providerID); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("availability invalidation failed",
			slog.String("provider_id", providerID.String()),
			slog.Any("err", err),
		)
	}
}
