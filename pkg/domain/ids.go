// Package domain holds typed identifiers shared across modules.
//
// Each aggregate gets its own UUID wrapper so the compiler rejects passing a
// donor ID where a unit ID is expected. Parse helpers enforce the trust
// boundary invariant: IDs must be valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "bloodlink/pkg/domain-errors"
)

type (
	// DonorID identifies a registered donor.
	DonorID uuid.UUID
	// BloodBankID identifies a blood bank.
	BloodBankID uuid.UUID
	// InstitutionID identifies a medical institution.
	InstitutionID uuid.UUID
	// UnitID identifies a collected blood unit.
	UnitID uuid.UUID
	// RequestID identifies a blood request.
	RequestID uuid.UUID
	// ScheduleID identifies a donation schedule entry.
	ScheduleID uuid.UUID
	// UserID identifies an authenticated user account.
	UserID uuid.UUID
)

func (id DonorID) String() string       { return uuid.UUID(id).String() }
func (id BloodBankID) String() string   { return uuid.UUID(id).String() }
func (id InstitutionID) String() string { return uuid.UUID(id).String() }
func (id UnitID) String() string        { return uuid.UUID(id).String() }
func (id RequestID) String() string     { return uuid.UUID(id).String() }
func (id ScheduleID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }

func (id DonorID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id BloodBankID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id InstitutionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UnitID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ScheduleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseDonorID parses and validates a donor ID from its string form.
func ParseDonorID(raw string) (DonorID, error) {
	parsed, err := parseUUID(raw)
	return DonorID(parsed), err
}

// ParseBloodBankID parses and validates a blood bank ID from its string form.
func ParseBloodBankID(raw string) (BloodBankID, error) {
	parsed, err := parseUUID(raw)
	return BloodBankID(parsed), err
}

// ParseInstitutionID parses and validates an institution ID from its string form.
func ParseInstitutionID(raw string) (InstitutionID, error) {
	parsed, err := parseUUID(raw)
	return InstitutionID(parsed), err
}

// ParseUnitID parses and validates a blood unit ID from its string form.
func ParseUnitID(raw string) (UnitID, error) {
	parsed, err := parseUUID(raw)
	return UnitID(parsed), err
}

// ParseRequestID parses and validates a blood request ID from its string form.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw)
	return RequestID(parsed), err
}

// ParseScheduleID parses and validates a schedule ID from its string form.
func ParseScheduleID(raw string) (ScheduleID, error) {
	parsed, err := parseUUID(raw)
	return ScheduleID(parsed), err
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	return UserID(parsed), err
}
