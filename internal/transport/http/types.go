package http

import (
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

type createAppointmentRequest struct {
	PatientID  string  `json:"patient_id"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	ProviderID *string `json:"provider_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

type reassignRequest struct {
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason,omitempty"`
}

type rescheduleRequest struct {
	Date   *string `json:"date,omitempty"`
	Time   *string `json:"time,omitempty"`
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type changeStatusRequest struct {
	State string `json:"state"`
	Note  string `json:"note,omitempty"`
}

type appointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type createAppointmentResponse struct {
	Appointment   appointmentResponse `json:"appointment"`
	AutoConfirmed bool                `json:"auto_confirmed"`
	Message       string              `json:"message"`
}

type providerResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

type availabilityResponse struct {
	Date      string             `json:"date"`
	Time      string             `json:"time"`
	Providers []providerResponse `json:"providers"`
}

type historyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		Date:       a.Date.Format("2006-01-02"),
		Time:       domain.FormatMinuteOfDay(a.StartMinute),
		State:      string(a.State),
		Reason:     a.Reason,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
	}
}

func toProviderResponses(providers []domain.Provider) []providerResponse {
	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerResponse{ID: p.ID, Name: p.Name, Role: p.Role})
	}
	return out
}

func toHistoryEntries(events []domain.AuditEvent) []historyEntry {
	out := make([]historyEntry, 0, len(events))
	for _, e := range events {
		out = append(out, historyEntry{Timestamp: e.CreatedAt, Kind: string(e.Kind), Detail: e.Detail})
	}
	return out
}
