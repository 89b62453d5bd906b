package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "bloodlink/pkg/domain"
)

var searchDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "bloodlink_geo_search_duration_ms",
	Help:    "Latency of Redis GEO proximity searches in milliseconds",
	Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100},
})

const (
	donorGeoKey   = "geo:donors"
	bankGeoKey    = "geo:banks"
	requestGeoKey = "geo:requests"
)

// DonorFlags resolves donor eligibility; implemented by the donor store.
// Defined here so the locator does not depend on the donor module.
type DonorFlags interface {
	IsEligible(ctx context.Context, donorID id.DonorID) (bool, error)
}

// BankFlags resolves blood bank active status; implemented by the bank store.
type BankFlags interface {
	IsActive(ctx context.Context, bankID id.BloodBankID) (bool, error)
}

// Locator answers proximity queries against Redis GEO sets.
type Locator struct {
	client *redis.Client
	donors DonorFlags
	banks  BankFlags
}

// NewLocator constructs a locator over the given Redis client.
func NewLocator(client *redis.Client, donors DonorFlags, banks BankFlags) *Locator {
	return &Locator{client: client, donors: donors, banks: banks}
}

// UpsertDonor mirrors a donor's coordinates into the donor GEO set.
func (l *Locator) UpsertDonor(ctx context.Context, donorID id.DonorID, pt Point) error {
	err := l.client.GeoAdd(ctx, donorGeoKey, &redis.GeoLocation{
		Name:      donorID.String(),
		Latitude:  pt.Latitude,
		Longitude: pt.Longitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd donor: %w", err)
	}
	return nil
}

// UpsertBank mirrors a blood bank's coordinates into the bank GEO set.
func (l *Locator) UpsertBank(ctx context.Context, bankID id.BloodBankID, pt Point) error {
	err := l.client.GeoAdd(ctx, bankGeoKey, &redis.GeoLocation{
		Name:      bankID.String(),
		Latitude:  pt.Latitude,
		Longitude: pt.Longitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd bank: %w", err)
	}
	return nil
}

// RemoveDonor drops a donor from the GEO set (profile deleted or location cleared).
func (l *Locator) RemoveDonor(ctx context.Context, donorID id.DonorID) error {
	return l.client.ZRem(ctx, donorGeoKey, donorID.String()).Err()
}

// RemoveBank drops a bank from the GEO set.
func (l *Locator) RemoveBank(ctx context.Context, bankID id.BloodBankID) error {
	return l.client.ZRem(ctx, bankGeoKey, bankID.String()).Err()
}

// NearbyDonors returns up to MaxDonorResults eligible donors within radiusKm
// of the point, nearest first. Redis performs the spherical distance math;
// the kilometre radius is passed through unchanged.
func (l *Locator) NearbyDonors(ctx context.Context, pt Point, radiusKm float64) ([]id.DonorID, error) {
	names, err := l.search(ctx, donorGeoKey, pt, radiusKm, MaxDonorResults)
	if err != nil {
		return nil, fmt.Errorf("nearby donors: %w", err)
	}
	out := make([]id.DonorID, 0, len(names))
	for _, name := range names {
		donorID, err := id.ParseDonorID(name)
		if err != nil {
			continue // stale or foreign member, skip
		}
		eligible, err := l.donors.IsEligible(ctx, donorID)
		if err != nil || !eligible {
			continue
		}
		out = append(out, donorID)
	}
	return out, nil
}

// NearbyBanks returns up to MaxBankResults active blood banks within radiusKm
// of the point, nearest first.
func (l *Locator) NearbyBanks(ctx context.Context, pt Point, radiusKm float64) ([]id.BloodBankID, error) {
	names, err := l.search(ctx, bankGeoKey, pt, radiusKm, MaxBankResults)
	if err != nil {
		return nil, fmt.Errorf("nearby banks: %w", err)
	}
	out := make([]id.BloodBankID, 0, len(names))
	for _, name := range names {
		bankID, err := id.ParseBloodBankID(name)
		if err != nil {
			continue
		}
		active, err := l.banks.IsActive(ctx, bankID)
		if err != nil || !active {
			continue
		}
		out = append(out, bankID)
	}
	return out, nil
}

// UpsertRequest mirrors an open request's location so donor-side browsing can
// apply a travel-distance clause.
func (l *Locator) UpsertRequest(ctx context.Context, requestID id.RequestID, pt Point) error {
	err := l.client.GeoAdd(ctx, requestGeoKey, &redis.GeoLocation{
		Name:      requestID.String(),
		Latitude:  pt.Latitude,
		Longitude: pt.Longitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd request: %w", err)
	}
	return nil
}

// RemoveRequest drops a request from the GEO set once it leaves the open states.
func (l *Locator) RemoveRequest(ctx context.Context, requestID id.RequestID) error {
	return l.client.ZRem(ctx, requestGeoKey, requestID.String()).Err()
}

// NearbyRequests returns IDs of requests within radiusKm of the point,
// nearest first. Status filtering is the caller's concern.
func (l *Locator) NearbyRequests(ctx context.Context, pt Point, radiusKm float64) ([]id.RequestID, error) {
	names, err := l.search(ctx, requestGeoKey, pt, radiusKm, MaxDonorResults)
	if err != nil {
		return nil, fmt.Errorf("nearby requests: %w", err)
	}
	out := make([]id.RequestID, 0, len(names))
	for _, name := range names {
		requestID, err := id.ParseRequestID(name)
		if err != nil {
			continue
		}
		out = append(out, requestID)
	}
	return out, nil
}

func (l *Locator) search(ctx context.Context, key string, pt Point, radiusKm float64, count int) ([]string, error) {
	start := time.Now()
	defer func() {
		searchDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	return l.client.GeoSearch(ctx, key, &redis.GeoSearchQuery{
		Latitude:   pt.Latitude,
		Longitude:  pt.Longitude,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      count,
	}).Result()
}
