package models

import (
	dErrors "bloodlink/pkg/domain-errors"
)

// Status is the lifecycle state of a collected blood unit.
type Status string

const (
	StatusInInventory Status = "in_inventory"
	StatusReserved    Status = "reserved"
	StatusDispatched  Status = "dispatched"
	StatusUsed        Status = "used"
	StatusExpired     Status = "expired"
	StatusDiscarded   Status = "discarded"
	StatusQuarantined Status = "quarantined"
)

// StatusNone marks a newly completed donation that has not been assigned a
// lifecycle state yet. It may transition to any state (initial assignment).
const StatusNone Status = ""

// transitions is the canonical table. A status absent from the map (or mapped
// to an empty set) is terminal. Every status-changing operation must pass
// through CanTransitionTo before mutating a unit.
var transitions = map[Status]map[Status]bool{
	StatusInInventory: {
		StatusReserved:    true,
		StatusDispatched:  true,
		StatusDiscarded:   true,
		StatusExpired:     true,
		StatusQuarantined: true,
	},
	StatusReserved: {
		StatusDispatched:  true,
		StatusInInventory: true,
		StatusDiscarded:   true,
		StatusExpired:     true,
		StatusQuarantined: true,
	},
	StatusDispatched: {
		StatusUsed:      true,
		StatusDiscarded: true,
	},
	StatusQuarantined: {
		StatusInInventory: true,
		StatusDiscarded:   true,
	},
	StatusUsed:      {},
	StatusExpired:   {},
	StatusDiscarded: {},
}

// Valid reports whether s names a known unit status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether the table permits moving from s to next.
// The empty status (new unit) may be assigned any valid state.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == StatusNone {
		return true
	}
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	return allowed[next]
}

// ValidateTransition returns a coded error naming both states when the table
// forbids the move. It never clamps or coerces.
func ValidateTransition(current, requested Status) error {
	if current.CanTransitionTo(requested) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation,
		"cannot change unit status from %q to %q", string(current), string(requested)).
		WithDetail("current_status", string(current)).
		WithDetail("requested_status", string(requested))
}
