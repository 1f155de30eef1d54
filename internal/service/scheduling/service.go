package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

// DefaultProviderRole is the directory role consulted when a booking
// does not name one.
const DefaultProviderRole = "provider"

// Minimum notice, in hours, before an appointment's scheduled moment.
const (
	cancelNoticeHours = 2
	deleteNoticeHours = 4
)

// Notice carries everything the dispatcher needs to render a booking
// message. Delivery is best-effort and never blocks or fails the
// triggering operation.
type Notice struct {
	Patient     domain.Patient
	Provider    domain.Provider
	Date        time.Time
	StartMinute int
	Reason      string
	Message     string
}

type Notifier interface {
	AppointmentBooked(ctx context.Context, n Notice)
	AppointmentCancelled(ctx context.Context, n Notice)
	AppointmentRescheduled(ctx context.Context, n Notice)
}

type noopNotifier struct{}

func (noopNotifier) AppointmentBooked(context.Context, Notice)      {}
func (noopNotifier) AppointmentCancelled(context.Context, Notice)   {}
func (noopNotifier) AppointmentRescheduled(context.Context, Notice) {}

type Service struct {
	repo     store.AppointmentRepository
	dir      store.Directory
	notifier Notifier
	loc      *time.Location
	log      *slog.Logger

	// Overridable in tests.
	now  func() time.Time
	pick func(n int) int
}

func NewService(repo store.AppointmentRepository, dir store.Directory, notifier Notifier, loc *time.Location, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		loc:      loc,
		log:      log.With(slog.String("component", "scheduling")),
		now:      time.Now,
		pick:     rand.Intn,
	}
}

type CreateInput struct {
	PatientID   uuid.UUID
	Date        time.Time
	StartMinute int
	ProviderID  *uuid.UUID
	Reason      string
	Notes       string
}

type CreateResult struct {
	Appointment   domain.Appointment
	AutoConfirmed bool
	Message       string
}

// Create books an appointment: it resolves the eligible providers for
// the slot, applies the assignment policy, seeds the state via the
// auto-confirmation rule, and persists the row inside the slot
// transaction so concurrent bookings cannot both take the last free
// provider.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if in.PatientID == uuid.Nil {
		return CreateResult{}, validationError("patient_id is required")
	}
	if in.Date.IsZero() {
		return CreateResult{}, validationError("date is required")
	}
	if in.StartMinute < 0 || in.StartMinute >= domain.MinutesPerDay {
		return CreateResult{}, validationError("time must fall within the day")
	}

	now := s.now()
	if domain.PastDay(now, in.Date, s.loc) {
		return CreateResult{}, validationError("date must not be in the past")
	}

	patient, err := s.dir.GetPatient(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CreateResult{}, ErrPatientNotFound
		}
		return CreateResult{}, fmt.Errorf("load patient: %w", err)
	}

	active, err := s.dir.ListActiveProviders(ctx, DefaultProviderRole)
	if err != nil {
		return CreateResult{}, fmt.Errorf("list providers: %w", err)
	}

	date := domain.DateOnly(in.Date)
	state, message := domain.AutoConfirm(now, date, in.StartMinute, s.loc)

	var created domain.Appointment
	var provider domain.Provider
	err = s.repo.InSlotTransaction(ctx, date, in.StartMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		booked, err := tx.ListBookedProviderIDs(ctx, date, in.StartMinute)
		if err != nil {
			return fmt.Errorf("list booked providers: %w", err)
		}

		provider, err = s.assignProvider(active, subtractBooked(active, booked), in.ProviderID)
		if err != nil {
			return err
		}

		created, err = tx.CreateAppointment(ctx, domain.Appointment{
			PatientID:   in.PatientID,
			ProviderID:  provider.ID,
			Date:        date,
			StartMinute: in.StartMinute,
			State:       state,
			Reason:      in.Reason,
			Notes:       in.Notes,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrProviderConflict
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.notifier.AppointmentBooked(ctx, Notice{
		Patient:     patient,
		Provider:    provider,
		Date:        date,
		StartMinute: in.StartMinute,
		Reason:      in.Reason,
		Message:     message,
	})

	return CreateResult{
		Appointment:   created,
		AutoConfirmed: state == domain.StateConfirmed,
		Message:       message,
	}, nil
}

// Reassign moves the appointment to another active provider without
// touching its state. The new provider is validated against the
// directory, but the slot is not re-checked against their existing
// bookings; the active-slot index in storage still rejects an outright
// double booking, surfaced as ErrProviderConflict.
func (s *Service) Reassign(ctx context.Context, id, newProviderID uuid.UUID, reasonText string) (domain.Appointment, error) {
	if newProviderID == uuid.Nil {
		return domain.Appointment{}, validationError("provider_id is required")
	}

	provider, err := s.dir.GetProvider(ctx, newProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrProviderNotFound
		}
		return domain.Appointment{}, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Active || provider.Role != DefaultProviderRole {
		return domain.Appointment{}, ErrProviderNotFound
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.repo.InSlotTransaction(ctx, appt.Date, appt.StartMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt.State.Terminal() {
			return ErrInvalidStateForOperation
		}

		previous, err := s.dir.GetProvider(ctx, appt.ProviderID)
		previousName := appt.ProviderID.String()
		if err == nil {
			previousName = previous.Name
		}

		appt.ProviderID = provider.ID
		updated, err = tx.UpdateAppointment(ctx, appt)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrProviderConflict
			}
			return fmt.Errorf("reassign appointment: %w", err)
		}

		detail := fmt.Sprintf("%s -> %s", previousName, provider.Name)
		if reasonText != "" {
			detail += " (" + reasonText + ")"
		}
		return tx.AppendAuditEvent(ctx, domain.AuditEvent{
			AppointmentID: appt.ID,
			Kind:          domain.AuditReassignment,
			Detail:        detail,
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

type RescheduleInput struct {
	Date        *time.Time
	StartMinute *int
	Reason      *string
	Notes       *string
}

// Reschedule moves an appointment to a new date and/or time. No
// minimum-notice window applies. A notification goes out only when the
// scheduled moment actually changed.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.State == domain.StateCancelled {
		return domain.Appointment{}, ErrInvalidStateForOperation
	}

	newDate := appt.Date
	if in.Date != nil {
		newDate = domain.DateOnly(*in.Date)
	}
	newMinute := appt.StartMinute
	if in.StartMinute != nil {
		newMinute = *in.StartMinute
	}
	if newMinute < 0 || newMinute >= domain.MinutesPerDay {
		return domain.Appointment{}, validationError("time must fall within the day")
	}
	if domain.PastDay(s.now(), newDate, s.loc) {
		return domain.Appointment{}, validationError("date must not be in the past")
	}

	moved := !newDate.Equal(appt.Date) || newMinute != appt.StartMinute

	var updated domain.Appointment
	err = s.repo.InSlotTransaction(ctx, newDate, newMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt.State == domain.StateCancelled {
			return ErrInvalidStateForOperation
		}

		fromSlot := fmt.Sprintf("%s %s", appt.Date.Format("2006-01-02"), domain.FormatMinuteOfDay(appt.StartMinute))
		toSlot := fmt.Sprintf("%s %s", newDate.Format("2006-01-02"), domain.FormatMinuteOfDay(newMinute))

		appt.Date = newDate
		appt.StartMinute = newMinute
		if in.Reason != nil {
			appt.Reason = *in.Reason
		}
		if in.Notes != nil {
			appt.Notes = *in.Notes
		}

		updated, err = tx.UpdateAppointment(ctx, appt)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrProviderConflict
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		if !moved {
			return nil
		}
		return tx.AppendAuditEvent(ctx, domain.AuditEvent{
			AppointmentID: appt.ID,
			Kind:          domain.AuditReschedule,
			Detail:        fmt.Sprintf("%s -> %s", fromSlot, toSlot),
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if moved {
		s.notify(ctx, updated, "", s.notifier.AppointmentRescheduled)
	}
	return updated, nil
}

// ChangeStatus applies an explicit caller-requested transition. It
// validates against the lifecycle machine but does not re-run the
// auto-confirmation rule.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, newState string, note string) (domain.Appointment, error) {
	to, ok := domain.ParseState(newState)
	if !ok {
		return domain.Appointment{}, ErrInvalidState
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.repo.InSlotTransaction(ctx, appt.Date, appt.StartMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(appt.State, to) {
			return ErrInvalidStateForOperation
		}

		updated, err = tx.UpdateAppointmentState(ctx, id, appt.State, to)
		if err != nil {
			return fmt.Errorf("change status: %w", err)
		}

		detail := fmt.Sprintf("%s -> %s", appt.State, to)
		if note != "" {
			detail += " (" + note + ")"
		}
		return tx.AppendAuditEvent(ctx, domain.AuditEvent{
			AppointmentID: appt.ID,
			Kind:          domain.AuditStatusChange,
			Detail:        detail,
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

// Cancel is the soft retirement of an appointment. It requires at
// least cancelNoticeHours before the scheduled moment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.State.Terminal() {
		return domain.Appointment{}, ErrInvalidStateForOperation
	}

	if err := s.requireNotice(appt, "cancel", cancelNoticeHours); err != nil {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.repo.InSlotTransaction(ctx, appt.Date, appt.StartMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt.State.Terminal() {
			return ErrInvalidStateForOperation
		}

		updated, err = tx.UpdateAppointmentState(ctx, id, appt.State, domain.StateCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		return tx.AppendAuditEvent(ctx, domain.AuditEvent{
			AppointmentID: appt.ID,
			Kind:          domain.AuditStatusChange,
			Detail:        fmt.Sprintf("%s -> %s", appt.State, domain.StateCancelled),
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notify(ctx, updated, "", s.notifier.AppointmentCancelled)
	return updated, nil
}

// Delete removes the record outright. It is treated as correcting a
// mistake, not a schedule event, so no notification goes out. The
// longer notice window pushes late callers toward Cancel instead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.requireNotice(appt, "delete", deleteNoticeHours); err != nil {
		return err
	}

	return s.repo.InSlotTransaction(ctx, appt.Date, appt.StartMinute, func(ctx context.Context, tx store.ScheduleTx) error {
		return tx.DeleteAppointment(ctx, id)
	})
}

// History returns the appointment's change entries, most recent first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]domain.AuditEvent, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAuditEvents(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.Appointment, error) {
	if patientID == uuid.Nil {
		return nil, validationError("patient_id is required")
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) requireNotice(appt domain.Appointment, op string, requiredHours float64) error {
	slot := domain.SlotTime(appt.Date, appt.StartMinute, s.loc)
	remaining := domain.HoursUntil(s.now(), slot)
	if remaining < requiredHours {
		return &TooLateError{Operation: op, RequiredHours: requiredHours, RemainingHours: remaining}
	}
	return nil
}

// notify looks up the directory entries for a dispatcher call.
// Failures are logged and swallowed; the mutation has already
// committed.
func (s *Service) notify(ctx context.Context, appt domain.Appointment, message string, send func(context.Context, Notice)) {
	patient, err := s.dir.GetPatient(ctx, appt.PatientID)
	if err != nil {
		s.log.Warn("skipping notification, patient lookup failed",
			slog.String("appointment_id", appt.ID.String()), slog.Any("err", err))
		return
	}
	provider, err := s.dir.GetProvider(ctx, appt.ProviderID)
	if err != nil {
		s.log.Warn("skipping notification, provider lookup failed",
			slog.String("appointment_id", appt.ID.String()), slog.Any("err", err))
		return
	}
	send(ctx, Notice{
		Patient:     patient,
		Provider:    provider,
		Date:        appt.Date,
		StartMinute: appt.StartMinute,
		Reason:      appt.Reason,
		Message:     message,
	})
}
