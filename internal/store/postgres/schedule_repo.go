package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.Appointment{}, translatePgError(err)
	}
	return m, nil
}

func (r *ScheduleRepo) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *ScheduleRepo) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return r.listAppointments(ctx, "provider_id", providerID, statuses, windowStart, windowEnd)
}

func (r *ScheduleRepo) ListClientAppointments(ctx context.Context, clientID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return r.listAppointments(ctx, "client_id", clientID, statuses, windowStart, windowEnd)
}

func (r *ScheduleRepo) listAppointments(ctx context.Context, column string, id uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(column), id).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC")
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", appointmentID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) CompletePastAppointments(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var updated []uuid.UUID
	_, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.AppointmentStatusCompleted).
		Set("updated_at = ?", now.UTC()).
		Where("status = ?", domain.AppointmentStatusConfirmed).
		Where("end_time < ?", now.UTC()).
		Returning("provider_id").
		Exec(ctx, &updated)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(updated))
	providers := make([]uuid.UUID, 0, len(updated))
	for _, id := range updated {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		providers = append(providers, id)
	}
	return providers, nil
}

func (r *ScheduleRepo) ListActiveRecurringRules(ctx context.Context, providerID uuid.UUID) ([]domain.RecurringRule, error) {
	var rows []domain.RecurringRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("is_active").
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) GetRecurringRule(ctx context.Context, ruleID uuid.UUID) (domain.RecurringRule, error) {
	var m domain.RecurringRule
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", ruleID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecurringRule{}, store.ErrNotFound
		}
		return domain.RecurringRule{}, err
	}
	return m, nil
}

func (r *ScheduleRepo) DeactivateRule(ctx context.Context, ruleID uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*domain.RecurringRule)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", ruleID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) ListExceptions(ctx context.Context, ruleIDs []uuid.UUID) ([]domain.RecurringException, error) {
	if len(ruleIDs) == 0 {
		return nil, nil
	}
	var rows []domain.RecurringException
	err := r.db.NewSelect().
		Model(&rows).
		Where("rule_id IN (?)", bun.In(ruleIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) UpsertException(ctx context.Context, ex domain.RecurringException) (domain.RecurringException, error) {
	m := ex
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (rule_id, exception_date) DO UPDATE").
		Set("action = EXCLUDED.action").
		Set("original_date = EXCLUDED.original_date").
		Set("new_start_time = EXCLUDED.new_start_time").
		Set("new_end_time = EXCLUDED.new_end_time").
		Set("notes = EXCLUDED.notes").
		Exec(ctx)
	if err != nil {
		return domain.RecurringException{}, translatePgError(err)
	}
	return m, nil
}

func (r *ScheduleRepo) DeleteException(ctx context.Context, ruleID uuid.UUID, exceptionDate time.Time) error {
	res, err := r.db.NewDelete().
		Model((*domain.RecurringException)(nil)).
		Where("rule_id = ?", ruleID).
		Where("exception_date = ?", exceptionDate.UTC()).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) ListBlockedWindows(ctx context.Context, providerID uuid.UUID) ([]domain.BlockedTimeSlot, error) {
	var rows []domain.BlockedTimeSlot
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("day_of_week ASC, start_hour ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// translatePgError maps store constraint violations onto sentinel errors.
// A uniqueness or exclusion violation on provider time means someone else
// took the slot first: a non-retryable conflict, not an internal failure.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23P01":
			return store.ErrConflict
		}
	}
	return err
}
