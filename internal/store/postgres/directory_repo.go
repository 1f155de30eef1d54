package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

// DirectoryRepo serves the read-only practitioner and patient views.
type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) ListActiveProviders(ctx context.Context, role string) ([]domain.Provider, error) {
	var rows []domain.Provider
	err := r.db.NewSelect().
		Model(&rows).
		Where("active").
		Where("role = ?", role).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DirectoryRepo) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Provider{}, store.ErrNotFound
		}
		return domain.Provider{}, err
	}
	return p, nil
}

func (r *DirectoryRepo) GetPatient(ctx context.Context, id uuid.UUID) (domain.Patient, error) {
	var p domain.Patient
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Patient{}, store.ErrNotFound
		}
		return domain.Patient{}, err
	}
	return p, nil
}
