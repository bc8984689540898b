package scheduling

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

var (
	testProviderID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	testClientID   = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	testListingID  = uuid.MustParse("00000000-0000-0000-0000-000000000004")
	testRuleID     = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)

// fakeScheduleStore implements store.ScheduleStore with overridable hooks.
// Unset hooks return empty results so each test only wires what it uses.
type fakeScheduleStore struct {
	createAppointment        func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	getAppointment           func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	listProviderAppointments func(ctx context.Context, providerID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	listClientAppointments   func(ctx context.Context, clientID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	updateAppointmentStatus  func(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) error
	completePastAppointments func(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	listActiveRecurringRules func(ctx context.Context, providerID uuid.UUID) ([]domain.RecurringRule, error)
	getRecurringRule         func(ctx context.Context, ruleID uuid.UUID) (domain.RecurringRule, error)
	deactivateRule           func(ctx context.Context, ruleID uuid.UUID) error
	listExceptions           func(ctx context.Context, ruleIDs []uuid.UUID) ([]domain.RecurringException, error)
	upsertException          func(ctx context.Context, ex domain.RecurringException) (domain.RecurringException, error)
	deleteException          func(ctx context.Context, ruleID uuid.UUID, exceptionDate time.Time) error
	listBlockedWindows       func(ctx context.Context, providerID uuid.UUID) ([]domain.BlockedTimeSlot, error)
}

var _ store.ScheduleStore = (*fakeScheduleStore)(nil)

func (f *fakeScheduleStore) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createAppointment == nil {
		appt.ID = uuid.New()
		return appt, nil
	}
	return f.createAppointment(ctx, appt)
}

func (f *fakeScheduleStore) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.getAppointment == nil {
		return domain.Appointment{}, store.ErrNotFound
	}
	return f.getAppointment(ctx, appointmentID)
}

func (f *fakeScheduleStore) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listProviderAppointments == nil {
		return nil, nil
	}
	return f.listProviderAppointments(ctx, providerID, statuses, windowStart, windowEnd)
}

func (f *fakeScheduleStore) ListClientAppointments(ctx context.Context, clientID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listClientAppointments == nil {
		return nil, nil
	}
	return f.listClientAppointments(ctx, clientID, statuses, windowStart, windowEnd)
}

func (f *fakeScheduleStore) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) error {
	if f.updateAppointmentStatus == nil {
		return nil
	}
	return f.updateAppointmentStatus(ctx, appointmentID, status)
}

func (f *fakeScheduleStore) CompletePastAppointments(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	if f.completePastAppointments == nil {
		return nil, nil
	}
	return f.completePastAppointments(ctx, now)
}

func (f *fakeScheduleStore) ListActiveRecurringRules(ctx context.Context, providerID uuid.UUID) ([]domain.RecurringRule, error) {
	if f.listActiveRecurringRules == nil {
		return nil, nil
	}
	return f.listActiveRecurringRules(ctx, providerID)
}

func (f *fakeScheduleStore) GetRecurringRule(ctx context.Context, ruleID uuid.UUID) (domain.RecurringRule, error) {
	if f.getRecurringRule == nil {
		return domain.RecurringRule{}, store.ErrNotFound
	}
	return f.getRecurringRule(ctx, ruleID)
}

func (f *fakeScheduleStore) DeactivateRule(ctx context.Context, ruleID uuid.UUID) error {
	if f.deactivateRule == nil {
		return nil
	}
	return f.deactivateRule(ctx, ruleID)
}

func (f *fakeScheduleStore) ListExceptions(ctx context.Context, ruleIDs []uuid.UUID) ([]domain.RecurringException, error) {
	if f.listExceptions == nil {
		return nil, nil
	}
	return f.listExceptions(ctx, ruleIDs)
}

func (f *fakeScheduleStore) UpsertException(ctx context.Context, ex domain.RecurringException) (domain.RecurringException, error) {
	if f.upsertException == nil {
		return ex, nil
	}
	return f.upsertException(ctx, ex)
}

func (f *fakeScheduleStore) DeleteException(ctx context.Context, ruleID uuid.UUID, exceptionDate time.Time) error {
	if f.deleteException == nil {
		return nil
	}
	return f.deleteException(ctx, ruleID, exceptionDate)
}

func (f *fakeScheduleStore) ListBlockedWindows(ctx context.Context, providerID uuid.UUID) ([]domain.BlockedTimeSlot, error) {
	if f.listBlockedWindows == nil {
		return nil, nil
	}
	return f.listBlockedWindows(ctx, providerID)
}

type fakeSlotStore struct {
	getSlots                func(ctx context.Context, providerID, listingID uuid.UUID, from, to time.Time) ([]domain.TimeSlot, error)
	acquireSlots            func(ctx context.Context, slotIDs []uuid.UUID, until time.Time) error
	releaseSlots            func(ctx context.Context, slotIDs []uuid.UUID) error
	reserveSlots            func(ctx context.Context, slotIDs []uuid.UUID) error
	releaseAppointmentSlots func(ctx context.Context, providerID uuid.UUID, start, end time.Time) error
}

var _ store.SlotStore = (*fakeSlotStore)(nil)

func (f *fakeSlotStore) GetSlots(ctx context.Context, providerID, listingID uuid.UUID, from, to time.Time) ([]domain.TimeSlot, error) {
	if f.getSlots == nil {
		return nil, nil
	}
	return f.getSlots(ctx, providerID, listingID, from, to)
}

func (f *fakeSlotStore) AcquireSlots(ctx context.Context, slotIDs []uuid.UUID, until time.Time) error {
	if f.acquireSlots == nil {
		return nil
	}
	return f.acquireSlots(ctx, slotIDs, until)
}

func (f *fakeSlotStore) ReleaseSlots(ctx context.Context, slotIDs []uuid.UUID) error {
	if f.releaseSlots == nil {
		return nil
	}
	return f.releaseSlots(ctx, slotIDs)
}

func (f *fakeSlotStore) ReserveSlots(ctx context.Context, slotIDs []uuid.UUID) error {
	if f.reserveSlots == nil {
		return nil
	}
	return f.reserveSlots(ctx, slotIDs)
}

func (f *fakeSlotStore) ReleaseAppointmentSlots(ctx context.Context, providerID uuid.UUID, start, end time.Time) error {
	if f.releaseAppointmentSlots == nil {
		return nil
	}
	return f.releaseAppointmentSlots(ctx, providerID, start, end)
}

// fakeCache is an in-memory AvailabilityCache tracking invalidations.
type fakeCache struct {
	entries     map[string][]domain.AvailabilitySlot
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.AvailabilitySlot)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]domain.AvailabilitySlot, bool, error) {
	slots, ok := c.entries[key]
	return slots, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, slots []domain.AvailabilitySlot) error {
	c.entries[key] = slots
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	c.invalidated = append(c.invalidated, providerID)
	for k := range c.entries {
		delete(c.entries, k)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(schedule *fakeScheduleStore, slots *fakeSlotStore, cache AvailabilityCache) *Service {
	if schedule == nil {
		schedule = &fakeScheduleStore{}
	}
	if slots == nil {
		slots = &fakeSlotStore{}
	}
	return NewService(Params{
		Schedule: schedule,
		Slots:    slots,
		Cache:    cache,
		Log:      discardLogger(),
	})
}

func confirmedAppointment(start, end time.Time) domain.Appointment {
	return domain.Appointment{
		ID:         uuid.New(),
		ProviderID: testProviderID,
		ClientID:   testClientID,
		ListingID:  testListingID,
		StartTime:  start,
		EndTime:    end,
		Status:     domain.AppointmentStatusConfirmed,
	}
}

func weeklyRule(start time.Time) domain.RecurringRule {
	return domain.RecurringRule{
		ID:         testRuleID,
		ClientID:   testClientID,
		ProviderID: testProviderID,
		ListingID:  testListingID,
		Recurrence: domain.RecurrenceWeekly,
		StartDate:  start,
		StartTime:  "09:00",
		EndTime:    "10:00",
		DayOfWeek:  int(start.Weekday()),
		IsActive:   true,
		ClientName: "Ana",
	}
}
