package donor

import (
	"context"
	"sync"

	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// MemoryStore keeps donor and bank profiles in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	donors map[id.DonorID]*Donor
	banks  map[id.BloodBankID]*BloodBank
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		donors: make(map[id.DonorID]*Donor),
		banks:  make(map[id.BloodBankID]*BloodBank),
	}
}

func (s *MemoryStore) SaveDonor(ctx context.Context, d *Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.donors[d.ID] = &c
	return nil
}

func (s *MemoryStore) FindDonorByID(ctx context.Context, donorID id.DonorID) (*Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donors[donorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *d
	return &c, nil
}

// IsEligible implements geo.DonorFlags.
func (s *MemoryStore) IsEligible(ctx context.Context, donorID id.DonorID) (bool, error) {
	d, err := s.FindDonorByID(ctx, donorID)
	if err != nil {
		return false, err
	}
	return d.Eligible, nil
}

func (s *MemoryStore) SaveBank(ctx context.Context, b *BloodBank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *b
	s.banks[b.ID] = &c
	return nil
}

func (s *MemoryStore) FindBankByID(ctx context.Context, bankID id.BloodBankID) (*BloodBank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.banks[bankID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *b
	return &c, nil
}

// IsActive implements geo.BankFlags.
func (s *MemoryStore) IsActive(ctx context.Context, bankID id.BloodBankID) (bool, error) {
	b, err := s.FindBankByID(ctx, bankID)
	if err != nil {
		return false, err
	}
	return b.Active, nil
}
