package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

func TestPostgresIntegration_SlotBookingLifecycle(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("MEDIPLAN_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("MEDIPLAN_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "mediplan_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	providerID := uuid.MustParse("00000000-0000-0000-0000-000000000901")
	patientID := uuid.MustParse("00000000-0000-0000-0000-000000000902")
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		provider := domain.Provider{ID: providerID, Name: "Dr. A", Role: "provider", Active: true}
		if _, err := tx.NewInsert().Model(&provider).Exec(ctx); err != nil {
			return err
		}
		patient := domain.Patient{ID: patientID, Name: "Pat", Email: "pat@example.com"}
		if _, err := tx.NewInsert().Model(&patient).Exec(ctx); err != nil {
			return err
		}

		s := scheduleTx{tx: tx}

		a1, err := s.CreateAppointment(ctx, domain.Appointment{
			PatientID:   patientID,
			ProviderID:  providerID,
			Date:        date,
			StartMinute: 600,
			State:       domain.StateScheduled,
		})
		if err != nil {
			return err
		}
		if a1.ID == uuid.Nil {
			return fmt.Errorf("expected a generated id")
		}

		// Same provider, same slot, while still active: the partial
		// unique index must reject it.
		_, err = s.CreateAppointment(ctx, domain.Appointment{
			PatientID:   patientID,
			ProviderID:  providerID,
			Date:        date,
			StartMinute: 600,
			State:       domain.StateConfirmed,
		})
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("double booking err = %v, want %v", err, store.ErrConflict)
		}

		booked, err := s.ListBookedProviderIDs(ctx, date, 600)
		if err != nil {
			return err
		}
		if len(booked) != 1 || booked[0] != providerID {
			return fmt.Errorf("booked = %v, want [%s]", booked, providerID)
		}

		// The conditional update flips state only from the expected one.
		if _, err := s.UpdateAppointmentState(ctx, a1.ID, domain.StateScheduled, domain.StateCancelled); err != nil {
			return err
		}
		_, err = s.UpdateAppointmentState(ctx, a1.ID, domain.StateScheduled, domain.StateConfirmed)
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("stale transition err = %v, want %v", err, store.ErrNotFound)
		}

		// Cancelled rows leave the index, so the slot is free again.
		a2, err := s.CreateAppointment(ctx, domain.Appointment{
			PatientID:   patientID,
			ProviderID:  providerID,
			Date:        date,
			StartMinute: 600,
			State:       domain.StateScheduled,
		})
		if err != nil {
			return fmt.Errorf("rebooking freed slot: %v", err)
		}

		for _, detail := range []string{"scheduled -> cancelled", "rebooked"} {
			if err := s.AppendAuditEvent(ctx, domain.AuditEvent{
				AppointmentID: a2.ID,
				Kind:          domain.AuditStatusChange,
				Detail:        detail,
			}); err != nil {
				return err
			}
		}
		var events []domain.AuditEvent
		err = tx.NewSelect().
			Model(&events).
			Where("appointment_id = ?", a2.ID).
			OrderExpr("created_at DESC, id DESC").
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(events) != 2 {
			return fmt.Errorf("len(events) = %d, want 2", len(events))
		}

		if err := s.DeleteAppointment(ctx, a2.ID); err != nil {
			return err
		}
		if err := s.DeleteAppointment(ctx, a2.ID); !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("repeat delete err = %v, want %v", err, store.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
