package store

import (
	"context"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// Directory is the read-only view of the practitioner and patient
// registries. The scheduling engine consumes it, never mutates it.
type Directory interface {
	ListActiveProviders(ctx context.Context, role string) ([]domain.Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	GetPatient(ctx context.Context, id uuid.UUID) (domain.Patient, error)
}
