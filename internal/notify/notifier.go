// Package notify dispatches blood request notifications to interested donors
// and blood banks. Delivery is best effort: the domain operation that emits a
// notification succeeds regardless of dispatch outcome.
package notify

import (
	"context"

	id "bloodlink/pkg/domain"
)

// NewRequestNote announces a newly created blood request to nearby donors and banks.
type NewRequestNote struct {
	Request       id.RequestID     `json:"request_id"`
	BloodGroup    string           `json:"blood_group"`
	LocationLabel string           `json:"location_label"`
	Priority      string           `json:"priority"`
	Donors        []id.DonorID     `json:"donor_ids"`
	Banks         []id.BloodBankID `json:"bank_ids"`
}

// FulfilledNote informs a requester that their request has been fulfilled.
type FulfilledNote struct {
	Requester     id.InstitutionID `json:"requester_id"`
	Request       id.RequestID     `json:"request_id"`
	BloodGroup    string           `json:"blood_group"`
	FulfilledBy   string           `json:"fulfilled_by"`
	UnitsReserved int              `json:"units_reserved"`
}

// Notifier hands notifications to the delivery collaborator. Implementations
// must not block domain flow; errors are for local logging only.
type Notifier interface {
	NewBloodRequest(ctx context.Context, note NewRequestNote) error
	RequestFulfilled(ctx context.Context, note FulfilledNote) error
}

// Noop discards all notifications; used when no broker is configured.
type Noop struct{}

func (Noop) NewBloodRequest(context.Context, NewRequestNote) error { return nil }
func (Noop) RequestFulfilled(context.Context, FulfilledNote) error { return nil }
