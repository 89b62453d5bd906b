// Package blood holds the blood typing enums and the two pure domain tables
// everything else builds on: donation compatibility and product shelf life.
package blood

import (
	"fmt"

	dErrors "bloodlink/pkg/domain-errors"
)

// Type is the ABO blood group.
type Type string

const (
	TypeO  Type = "O"
	TypeA  Type = "A"
	TypeB  Type = "B"
	TypeAB Type = "AB"
)

// Rh is the Rhesus factor.
type Rh string

const (
	RhPositive Rh = "+"
	RhNegative Rh = "-"
)

// Group pairs an ABO type with an Rh factor, e.g. O-.
type Group struct {
	Type Type
	Rh   Rh
}

// Valid reports whether the group carries a known type and Rh factor.
func (g Group) Valid() bool {
	switch g.Type {
	case TypeO, TypeA, TypeB, TypeAB:
	default:
		return false
	}
	return g.Rh == RhPositive || g.Rh == RhNegative
}

func (g Group) String() string {
	return string(g.Type) + string(g.Rh)
}

// AllGroups enumerates the eight (type, Rh) combinations in a stable order.
func AllGroups() []Group {
	groups := make([]Group, 0, 8)
	for _, t := range []Type{TypeO, TypeA, TypeB, TypeAB} {
		for _, rh := range []Rh{RhPositive, RhNegative} {
			groups = append(groups, Group{Type: t, Rh: rh})
		}
	}
	return groups
}

// ParseGroup parses a combined token such as "O+" or "AB-". The format is
// strict: uppercase ABO type followed by a single + or - character. Anything
// else is rejected rather than guessed at.
func ParseGroup(raw string) (Group, error) {
	if len(raw) < 2 {
		return Group{}, dErrors.Newf(dErrors.CodeValidation, "invalid blood group %q", raw)
	}
	g := Group{
		Type: Type(raw[:len(raw)-1]),
		Rh:   Rh(raw[len(raw)-1:]),
	}
	if !g.Valid() {
		return Group{}, dErrors.Newf(dErrors.CodeValidation, "invalid blood group %q", raw)
	}
	return g, nil
}

// MustGroup is a test/fixture helper; it panics on an invalid token.
func MustGroup(raw string) Group {
	g, err := ParseGroup(raw)
	if err != nil {
		panic(fmt.Sprintf("blood: bad group literal %q", raw))
	}
	return g
}
