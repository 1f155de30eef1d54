package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"mediplan/backend/internal/store"
)

func TestMapSlotConflict(t *testing.T) {
	slotViolation := &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"active slot violation", slotViolation, store.ErrConflict},
		{"wrapped violation", fmt.Errorf("insert: %w", slotViolation), store.ErrConflict},
		{"other unique index", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"}, nil},
		{"other pg error", &pgconn.PgError{Code: "23503"}, nil},
		{"plain error", errors.New("connection reset"), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapSlotConflict(tt.in)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Fatalf("mapSlotConflict() = %v, want %v", got, tt.want)
				}
				return
			}
			if !errors.Is(got, tt.in) {
				t.Fatalf("mapSlotConflict() = %v, want the input passed through", got)
			}
		})
	}
}
