package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// FindEligibleProviders computes the set of active providers of the
// given role with no active booking at the requested slot. An empty
// result is a normal "no availability" answer, not an error. The call
// has no side effects; booking-affecting paths re-run the same
// computation inside the slot transaction.
func (s *Service) FindEligibleProviders(ctx context.Context, date time.Time, startMinute int, role string) ([]domain.Provider, error) {
	active, err := s.dir.ListActiveProviders(ctx, role)
	if err != nil {
		return nil, err
	}
	booked, err := s.repo.ListBookedProviderIDs(ctx, date, startMinute)
	if err != nil {
		return nil, err
	}
	return subtractBooked(active, booked), nil
}

func subtractBooked(active []domain.Provider, booked []uuid.UUID) []domain.Provider {
	taken := make(map[uuid.UUID]struct{}, len(booked))
	for _, id := range booked {
		taken[id] = struct{}{}
	}
	eligible := make([]domain.Provider, 0, len(active))
	for _, p := range active {
		if _, ok := taken[p.ID]; !ok {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// assignProvider applies the assignment policy. A caller-requested
// provider must be in the active roster and free at the slot; with no
// request the pick is uniform over the eligible set as deliberate
// load-spreading.
func (s *Service) assignProvider(active, eligible []domain.Provider, requested *uuid.UUID) (domain.Provider, error) {
	if requested != nil {
		var known bool
		for _, p := range active {
			if p.ID == *requested {
				known = true
				break
			}
		}
		if !known {
			return domain.Provider{}, ErrProviderNotFound
		}
		for _, p := range eligible {
			if p.ID == *requested {
				return p, nil
			}
		}
		return domain.Provider{}, ErrProviderConflict
	}

	if len(eligible) == 0 {
		return domain.Provider{}, ErrNoProvidersAvailable
	}
	return eligible[s.pick(len(eligible))], nil
}
