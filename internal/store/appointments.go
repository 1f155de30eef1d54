package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// AppointmentRepository is the persistence contract for the scheduling
// engine. Booking-affecting read-then-write sequences go through
// InSlotTransaction so that two concurrent requests for the same slot
// cannot both observe it free.
type AppointmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.Appointment, error)

	// ListBookedProviderIDs returns providers holding an active
	// (scheduled or confirmed) appointment at exactly this slot.
	ListBookedProviderIDs(ctx context.Context, date time.Time, startMinute int) ([]uuid.UUID, error)

	ListAuditEvents(ctx context.Context, appointmentID uuid.UUID) ([]domain.AuditEvent, error)

	InSlotTransaction(ctx context.Context, date time.Time, startMinute int, fn func(ctx context.Context, tx ScheduleTx) error) error
}

// ScheduleTx is the unit-of-work view handed to booking-affecting
// operations. All methods run inside a single database transaction
// holding the slot's advisory lock.
type ScheduleTx interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListBookedProviderIDs(ctx context.Context, date time.Time, startMinute int) ([]uuid.UUID, error)

	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// UpdateAppointmentState flips state only when the row is still in
	// from, so retries and concurrent transitions stay safe.
	UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to domain.State) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	AppendAuditEvent(ctx context.Context, ev domain.AuditEvent) error
}
