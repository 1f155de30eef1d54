package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type State string

const (
	StateScheduled State = "scheduled"
	StateConfirmed State = "confirmed"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// ParseState accepts only the four canonical states.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateScheduled, StateConfirmed, StateCompleted, StateCancelled:
		return State(s), true
	}
	return "", false
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Active reports whether the appointment still occupies its slot.
// Completed and cancelled appointments free the slot up.
func (s State) Active() bool {
	return s == StateScheduled || s == StateConfirmed
}

// CanTransition encodes the lifecycle machine: scheduled and confirmed
// move forward, terminal states never leave. scheduled -> completed is
// allowed without passing through confirmed, covering walk-ins seen
// before anyone confirmed the booking. Reassignment is not a state
// transition and is not governed here.
func CanTransition(from, to State) bool {
	if from.Terminal() || from == to {
		return false
	}
	switch from {
	case StateScheduled:
		return to == StateConfirmed || to == StateCompleted || to == StateCancelled
	case StateConfirmed:
		return to == StateCompleted || to == StateCancelled
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	PatientID   uuid.UUID `bun:"patient_id,notnull,type:uuid"`
	ProviderID  uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Date        time.Time `bun:"date,notnull,type:date"`
	StartMinute int       `bun:"start_minute,notnull"`
	State       State     `bun:"state,notnull"`
	Reason      string    `bun:"reason"`
	Notes       string    `bun:"notes"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
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

// Provider is a read-only view of the practitioner directory. The
// scheduling engine never mutates providers.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID     uuid.UUID `bun:"id,pk,type:uuid"`
	Name   string    `bun:"name,notnull"`
	Role   string    `bun:"role,notnull"`
	Active bool      `bun:"active,notnull"`
}

// Patient is a read-only view of the patient directory.
type Patient struct {
	bun.BaseModel `bun:"table:patients"`

	ID    uuid.UUID `bun:"id,pk,type:uuid"`
	Name  string    `bun:"name,notnull"`
	Email string    `bun:"email"`
}

type AuditKind string

const (
	AuditReassignment AuditKind = "reassignment"
	AuditStatusChange AuditKind = "status_change"
	AuditReschedule   AuditKind = "reschedule"
)

// AuditEvent is one appended entry of an appointment's change history.
// Events live in their own table; the appointment's notes field stays
// free-form user text.
type AuditEvent struct {
	bun.BaseModel `bun:"table:appointment_events"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID `bun:"appointment_id,notnull,type:uuid"`
	Kind          AuditKind `bun:"kind,notnull"`
	Detail        string    `bun:"detail,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (e *AuditEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
