//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseDonorID tests that parsing never panics on arbitrary input
// and that accepted values round-trip through their string form.
func FuzzParseDonorID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE donors;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDonorID(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseDonorID(id.String())
		if err2 != nil {
			t.Errorf("valid ID failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed ID value")
		}
	})
}

// FuzzParseAllIDs ensures all ID types accept and reject the same inputs.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errDonor := ParseDonorID(input)
		_, errUnit := ParseUnitID(input)
		_, errRequest := ParseRequestID(input)
		_, errSchedule := ParseScheduleID(input)

		if (errDonor == nil) != (errUnit == nil) ||
			(errDonor == nil) != (errRequest == nil) ||
			(errDonor == nil) != (errSchedule == nil) {
			t.Errorf("inconsistent validation for input %q", input)
		}
	})
}
