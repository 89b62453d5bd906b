package geo

import (
	"context"

	id "bloodlink/pkg/domain"
)

// Noop is the locator used when Redis is not configured: upserts and removals
// succeed silently and proximity queries find nothing, so callers degrade to
// their non-geographic behavior.
type Noop struct{}

func (Noop) UpsertDonor(context.Context, id.DonorID, Point) error     { return nil }
func (Noop) UpsertBank(context.Context, id.BloodBankID, Point) error  { return nil }
func (Noop) UpsertRequest(context.Context, id.RequestID, Point) error { return nil }
func (Noop) RemoveDonor(context.Context, id.DonorID) error            { return nil }
func (Noop) RemoveBank(context.Context, id.BloodBankID) error         { return nil }
func (Noop) RemoveRequest(context.Context, id.RequestID) error        { return nil }

func (Noop) NearbyDonors(context.Context, Point, float64) ([]id.DonorID, error) {
	return nil, nil
}

func (Noop) NearbyBanks(context.Context, Point, float64) ([]id.BloodBankID, error) {
	return nil, nil
}

func (Noop) NearbyRequests(context.Context, Point, float64) ([]id.RequestID, error) {
	return nil, nil
}
