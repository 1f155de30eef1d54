package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

const activeSlotIndex = "appointments_active_slot"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID).
		OrderExpr("date ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListBookedProviderIDs(ctx context.Context, date time.Time, startMinute int) ([]uuid.UUID, error) {
	return listBookedProviderIDs(ctx, r.db, date, startMinute)
}

func (r *AppointmentRepo) ListAuditEvents(ctx context.Context, appointmentID uuid.UUID) ([]domain.AuditEvent, error) {
	var rows []domain.AuditEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InSlotTransaction wraps fn in a database transaction serialized per
// slot with an advisory lock, so concurrent bookings of the same
// (date, time) observe each other's writes.
func (r *AppointmentRepo) InSlotTransaction(ctx context.Context, date time.Time, startMinute int, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, date, startMinute); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockSlot(ctx context.Context, tx bun.Tx, date time.Time, startMinute int) error {
	key := fmt.Sprintf("%s|%d", domain.DateOnly(date).Format("2006-01-02"), startMinute)
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (t scheduleTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := t.tx.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (t scheduleTx) ListBookedProviderIDs(ctx context.Context, date time.Time, startMinute int) ([]uuid.UUID, error) {
	return listBookedProviderIDs(ctx, t.tx, date, startMinute)
}

func (t scheduleTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapSlotConflict(err)
	}
	return m, nil
}

func (t scheduleTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapSlotConflict(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (t scheduleTx) UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to domain.State) (domain.Appointment, error) {
	res, err := t.tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("state = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("state = ?", from).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return t.GetAppointment(ctx, id)
}

func (t scheduleTx) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
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

func (t scheduleTx) AppendAuditEvent(ctx context.Context, ev domain.AuditEvent) error {
	m := ev
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	return err
}

type selector interface {
	NewSelect() *bun.SelectQuery
}

func listBookedProviderIDs(ctx context.Context, db selector, date time.Time, startMinute int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Column("provider_id").
		Where("date = ?", domain.DateOnly(date)).
		Where("start_minute = ?", startMinute).
		Where("state IN (?)", bun.In([]domain.State{domain.StateScheduled, domain.StateConfirmed})).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// mapSlotConflict translates a violation of the partial unique index
// over active (provider_id, date, start_minute) rows into the store's
// conflict sentinel.
func mapSlotConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotIndex {
		return store.ErrConflict
	}
	return err
}
