package blood

// abo maps a donor's ABO type to the recipient ABO types it may supply.
// O donates to everyone; AB only to AB. Rh is handled independently:
// Rh-negative supplies both factors, Rh-positive supplies Rh-positive only.
var abo = map[Type][]Type{
	TypeO:  {TypeO, TypeA, TypeB, TypeAB},
	TypeA:  {TypeA, TypeAB},
	TypeB:  {TypeB, TypeAB},
	TypeAB: {TypeAB},
}

// DonableTo returns the set of recipient groups a donor with the given group
// may supply. An unknown or missing type/Rh yields an empty set — no match is
// a legitimate outcome, not an error.
func DonableTo(donor Group) []Group {
	if !donor.Valid() {
		return nil
	}
	types := abo[donor.Type]
	rhs := []Rh{RhPositive}
	if donor.Rh == RhNegative {
		rhs = []Rh{RhPositive, RhNegative}
	}
	out := make([]Group, 0, len(types)*len(rhs))
	for _, t := range types {
		for _, rh := range rhs {
			out = append(out, Group{Type: t, Rh: rh})
		}
	}
	return out
}

// AcceptableFrom returns the set of donor groups a recipient with the given
// group may receive from. It is the set-inverse of DonableTo.
func AcceptableFrom(recipient Group) []Group {
	if !recipient.Valid() {
		return nil
	}
	var out []Group
	for _, donor := range AllGroups() {
		for _, g := range DonableTo(donor) {
			if g == recipient {
				out = append(out, donor)
				break
			}
		}
	}
	return out
}

// Compatible reports whether a donor group may supply a recipient group.
func Compatible(donor, recipient Group) bool {
	for _, g := range DonableTo(donor) {
		if g == recipient {
			return true
		}
	}
	return false
}
