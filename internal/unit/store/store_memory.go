// Package store provides blood unit inventory persistence. The memory
// implementation backs unit tests and dev mode; PostgreSQL is used in
// production. Both enforce the same conditional-update contract so concurrent
// status writers cannot race each other.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/blood"
	"bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// MemoryStore implements the inventory store with an in-process map.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[id.UnitID]*models.BloodUnit
}

// NewMemory constructs an empty in-memory inventory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{units: make(map[id.UnitID]*models.BloodUnit)}
}

func (s *MemoryStore) Create(ctx context.Context, unit *models.BloodUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.units[unit.ID]; exists {
		return sentinel.ErrConflict
	}
	s.units[unit.ID] = unit.Clone()
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return unit.Clone(), nil
}

// Execute atomically validates and mutates a single unit while holding the
// store lock. Validation failures leave the unit untouched; a concurrent
// writer that changed the unit first makes the validate callback observe the
// new state, which is how losing reservation attempts fail cleanly.
func (s *MemoryStore) Execute(ctx context.Context, unitID id.UnitID, validate func(*models.BloodUnit) error, mutate func(*models.BloodUnit)) (*models.BloodUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(unit); err != nil {
		return nil, err
	}
	mutate(unit)
	return unit.Clone(), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BloodUnit
	for _, unit := range s.units {
		if unit.DonationStatus != models.DonationCompleted {
			continue
		}
		if unit.Status == status {
			out = append(out, unit.Clone())
		}
	}
	sortByCollectedAt(out)
	return out, nil
}

// ListExpired returns in-inventory and reserved units whose expiry date has
// passed, for the daily retirement sweep.
func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BloodUnit
	for _, unit := range s.units {
		if !sweepable(unit) {
			continue
		}
		if unit.ExpiryDate != nil && unit.ExpiryDate.Before(now) {
			out = append(out, unit.Clone())
		}
	}
	sortByCollectedAt(out)
	return out, nil
}

// ListExpiringWithin returns units whose expiry falls inside [now, now+window],
// read-only, for the expiring-soon warning check.
func (s *MemoryStore) ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := now.Add(window)
	var out []*models.BloodUnit
	for _, unit := range s.units {
		if !sweepable(unit) {
			continue
		}
		if unit.ExpiryDate == nil {
			continue
		}
		if !unit.ExpiryDate.Before(now) && !unit.ExpiryDate.After(cutoff) {
			out = append(out, unit.Clone())
		}
	}
	sortByCollectedAt(out)
	return out, nil
}

// ListAvailable returns issuable units matching any of the given blood groups,
// optionally scoped to one blood bank, oldest collection first (FIFO issuance).
// limit <= 0 means no cap.
func (s *MemoryStore) ListAvailable(ctx context.Context, groups []blood.Group, bank *id.BloodBankID, limit int) ([]*models.BloodUnit, error) {
	now := requestcontext.Now(ctx)
	wanted := make(map[blood.Group]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BloodUnit
	for _, unit := range s.units {
		if !unit.Available(now) {
			continue
		}
		if !wanted[unit.Group] {
			continue
		}
		if bank != nil && unit.BloodBank != *bank {
			continue
		}
		out = append(out, unit.Clone())
	}
	sortByCollectedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountCompletedByMonth tallies completed donations per calendar month of the
// given year, keyed by collection date.
func (s *MemoryStore) CountCompletedByMonth(ctx context.Context, year int) (map[time.Month]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[time.Month]int)
	for _, unit := range s.units {
		if unit.DonationStatus != models.DonationCompleted {
			continue
		}
		if unit.CollectedAt.Year() == year {
			counts[unit.CollectedAt.Month()]++
		}
	}
	return counts, nil
}

func sweepable(unit *models.BloodUnit) bool {
	if unit.DonationStatus != models.DonationCompleted {
		return false
	}
	return unit.Status == models.StatusInInventory || unit.Status == models.StatusReserved
}

func sortByCollectedAt(units []*models.BloodUnit) {
	sort.Slice(units, func(i, j int) bool {
		return units[i].CollectedAt.Before(units[j].CollectedAt)
	})
}
