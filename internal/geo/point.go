// Package geo wraps proximity queries over Redis GEO sets. Donor and blood
// bank coordinates are mirrored into Redis on profile upsert; radius searches
// power request discovery and donor notification fan-out.
package geo

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zero reports whether the point is unset. (0,0) is open ocean; profiles
// never legitimately carry it.
func (p Point) Zero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}
