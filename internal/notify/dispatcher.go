package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/service/scheduling"
)

const sendTimeout = 10 * time.Second

// Dispatcher renders booking notices into emails and delivers them in
// the background. Delivery failures are logged, never surfaced: by the
// time a notice exists the triggering operation has already committed.
type Dispatcher struct {
	mailer Mailer
	log    *slog.Logger
}

func NewDispatcher(mailer Mailer, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		mailer: mailer,
		log:    log.With(slog.String("component", "notify")),
	}
}

func (d *Dispatcher) AppointmentBooked(ctx context.Context, n scheduling.Notice) {
	body := fmt.Sprintf("Your appointment with %s on %s is booked.\n%s",
		n.Provider.Name, slotText(n), n.Message)
	if n.Reason != "" {
		body += "\nReason for visit: " + n.Reason
	}
	d.deliver(n, "Appointment booked", body)
}

func (d *Dispatcher) AppointmentCancelled(ctx context.Context, n scheduling.Notice) {
	body := fmt.Sprintf("Your appointment with %s on %s has been cancelled.",
		n.Provider.Name, slotText(n))
	d.deliver(n, "Appointment cancelled", body)
}

func (d *Dispatcher) AppointmentRescheduled(ctx context.Context, n scheduling.Notice) {
	body := fmt.Sprintf("Your appointment with %s has been moved to %s.",
		n.Provider.Name, slotText(n))
	d.deliver(n, "Appointment rescheduled", body)
}

func (d *Dispatcher) deliver(n scheduling.Notice, subject, body string) {
	if n.Patient.Email == "" {
		d.log.Debug("no patient email on file, skipping notification",
			slog.String("patient_id", n.Patient.ID.String()))
		return
	}

	msg := Message{
		ToName:  n.Patient.Name,
		ToEmail: n.Patient.Email,
		Subject: subject,
		Body:    body,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.mailer.Send(ctx, msg); err != nil {
			d.log.Error("notification delivery failed",
				slog.String("to", msg.ToEmail),
				slog.String("subject", subject),
				slog.Any("err", err),
			)
		}
	}()
}

func slotText(n scheduling.Notice) string {
	return fmt.Sprintf("%s at %s", n.Date.Format("Monday, January 2 2006"), domain.FormatMinuteOfDay(n.StartMinute))
}
