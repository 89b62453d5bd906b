package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	"bloodlink/internal/donor"
	"bloodlink/internal/geo"
	"bloodlink/internal/notify"
	"bloodlink/internal/request/models"
	"bloodlink/internal/request/store"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

type fakeLocator struct {
	donors   []id.DonorID
	banks    []id.BloodBankID
	requests []id.RequestID

	upserted []id.RequestID
	removed  []id.RequestID
	fail     error
}

func (f *fakeLocator) NearbyDonors(context.Context, geo.Point, float64) ([]id.DonorID, error) {
	return f.donors, f.fail
}

func (f *fakeLocator) NearbyBanks(context.Context, geo.Point, float64) ([]id.BloodBankID, error) {
	return f.banks, f.fail
}

func (f *fakeLocator) NearbyRequests(context.Context, geo.Point, float64) ([]id.RequestID, error) {
	return f.requests, f.fail
}

func (f *fakeLocator) UpsertRequest(_ context.Context, requestID id.RequestID, _ geo.Point) error {
	f.upserted = append(f.upserted, requestID)
	return f.fail
}

func (f *fakeLocator) RemoveRequest(_ context.Context, requestID id.RequestID) error {
	f.removed = append(f.removed, requestID)
	return f.fail
}

type captureNotifier struct {
	created   []notify.NewRequestNote
	fulfilled []notify.FulfilledNote
	fail      error
}

func (c *captureNotifier) NewBloodRequest(_ context.Context, note notify.NewRequestNote) error {
	c.created = append(c.created, note)
	return c.fail
}

func (c *captureNotifier) RequestFulfilled(_ context.Context, note notify.FulfilledNote) error {
	c.fulfilled = append(c.fulfilled, note)
	return c.fail
}

func newDonor(t *testing.T, donors *donor.MemoryStore, group string, loc *geo.Point, travelKm *float64) id.DonorID {
	t.Helper()
	d := &donor.Donor{
		ID:          id.DonorID(uuid.New()),
		User:        id.UserID(uuid.New()),
		Name:        "Test Donor",
		Eligible:    true,
		Location:    loc,
		MaxTravelKm: travelKm,
	}
	if group != "" {
		d.Group = ptr(blood.MustGroup(group))
	}
	require.NoError(t, donors.SaveDonor(context.Background(), d))
	return d.ID
}

func ptr[T any](v T) *T { return &v }

func testService(t *testing.T, locator *fakeLocator, notifier *captureNotifier) (*Service, *store.MemoryStore, *donor.MemoryStore) {
	t.Helper()
	requests := store.NewMemory()
	donors := donor.NewMemoryStore()
	opts := []Option{}
	if notifier != nil {
		opts = append(opts, WithNotifier(notifier, true))
	}
	return New(requests, locator, donors, opts...), requests, donors
}

func createParams(now time.Time) CreateParams {
	return CreateParams{
		Institution:   id.InstitutionID(uuid.New()),
		Group:         blood.MustGroup("A+"),
		UnitsRequired: 3,
		Priority:      models.PriorityHigh,
		RequiredBy:    now.Add(48 * time.Hour),
		Location:      geo.Point{Latitude: 52.52, Longitude: 13.405},
		LocationLabel: "Charité Campus Mitte",
	}
}

func TestCreate(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("persists a pending request and indexes its location", func(t *testing.T) {
		locator := &fakeLocator{}
		svc, requests, _ := testService(t, locator, nil)

		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, created.Status)
		assert.Equal(t, 0, created.UnitsFulfilled)
		assert.Equal(t, now, created.CreatedAt)

		stored, err := requests.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, stored.ID)
		assert.Equal(t, []id.RequestID{created.ID}, locator.upserted)
	})

	t.Run("rejects a non-positive unit count", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)

		params := createParams(now)
		params.UnitsRequired = 0
		_, err := svc.Create(ctx, params)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects a deadline in the past", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)

		params := createParams(now)
		params.RequiredBy = now.Add(-time.Hour)
		_, err := svc.Create(ctx, params)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("notifies only donors compatible with the requested group", func(t *testing.T) {
		locator := &fakeLocator{}
		notifier := &captureNotifier{}
		svc, _, donors := testService(t, locator, notifier)

		universal := newDonor(t, donors, "O-", nil, nil)
		mismatched := newDonor(t, donors, "AB+", nil, nil)
		unknown := newDonor(t, donors, "", nil, nil)
		locator.donors = []id.DonorID{universal, mismatched, unknown}
		locator.banks = []id.BloodBankID{id.BloodBankID(uuid.New())}

		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)

		require.Len(t, notifier.created, 1)
		note := notifier.created[0]
		assert.Equal(t, created.ID, note.Request)
		assert.Equal(t, "A+", note.BloodGroup)
		assert.Equal(t, []id.DonorID{universal}, note.Donors)
		assert.Equal(t, locator.banks, note.Banks)
	})

	t.Run("succeeds even when discovery fails", func(t *testing.T) {
		locator := &fakeLocator{fail: assert.AnError}
		notifier := &captureNotifier{}
		svc, requests, _ := testService(t, locator, notifier)

		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)
		assert.Empty(t, notifier.created)

		_, err = requests.FindByID(ctx, created.ID)
		require.NoError(t, err)
	})
}

func TestOpenForDonor(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	seed := func(t *testing.T, svc *Service, group string, requiredBy time.Time) id.RequestID {
		t.Helper()
		params := createParams(now)
		params.Group = blood.MustGroup(group)
		params.RequiredBy = requiredBy
		created, err := svc.Create(ctx, params)
		require.NoError(t, err)
		return created.ID
	}

	t.Run("lists compatible pending requests most urgent first", func(t *testing.T) {
		svc, _, donors := testService(t, &fakeLocator{}, nil)
		donorID := newDonor(t, donors, "A-", nil, nil)

		later := seed(t, svc, "A+", now.Add(72*time.Hour))
		sooner := seed(t, svc, "A-", now.Add(24*time.Hour))
		seed(t, svc, "B+", now.Add(24*time.Hour)) // A- cannot serve B+

		open, err := svc.OpenForDonor(ctx, donorID)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, sooner, open[0].ID)
		assert.Equal(t, later, open[1].ID)
	})

	t.Run("omits the distance clause when donor has no travel limit", func(t *testing.T) {
		locator := &fakeLocator{}
		svc, _, donors := testService(t, locator, nil)
		donorID := newDonor(t, donors, "O-", ptr(geo.Point{Latitude: 52.5, Longitude: 13.4}), nil)

		seed(t, svc, "A+", now.Add(24*time.Hour))
		seed(t, svc, "B-", now.Add(36*time.Hour))

		open, err := svc.OpenForDonor(ctx, donorID)
		require.NoError(t, err)
		assert.Len(t, open, 2)
	})

	t.Run("restricts to requests within the donor's travel distance", func(t *testing.T) {
		locator := &fakeLocator{}
		svc, _, donors := testService(t, locator, nil)
		donorID := newDonor(t, donors, "O-",
			ptr(geo.Point{Latitude: 52.5, Longitude: 13.4}), ptr(25.0))

		near := seed(t, svc, "A+", now.Add(24*time.Hour))
		seed(t, svc, "B-", now.Add(36*time.Hour))
		locator.requests = []id.RequestID{near}

		open, err := svc.OpenForDonor(ctx, donorID)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, near, open[0].ID)
	})

	t.Run("returns nothing for a donor without an established group", func(t *testing.T) {
		svc, _, donors := testService(t, &fakeLocator{}, nil)
		donorID := newDonor(t, donors, "", nil, nil)

		seed(t, svc, "A+", now.Add(24*time.Hour))

		open, err := svc.OpenForDonor(ctx, donorID)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("unknown donor yields not found", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)

		_, err := svc.OpenForDonor(ctx, id.DonorID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestApproveAndCancel(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("approves a pending request", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)
		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)

		approved, err := svc.Approve(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, approved.Status)
	})

	t.Run("refuses to approve a cancelled request", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)
		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, created.ID)
		require.NoError(t, err)

		_, err = svc.Approve(ctx, created.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("cancel deindexes the request", func(t *testing.T) {
		locator := &fakeLocator{}
		svc, _, _ := testService(t, locator, nil)
		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)

		cancelled, err := svc.Cancel(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		assert.Equal(t, []id.RequestID{created.ID}, locator.removed)
	})

	t.Run("cancel is not repeatable", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)
		created, err := svc.Create(ctx, createParams(now))
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, created.ID)
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, created.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown request yields not found", func(t *testing.T) {
		svc, _, _ := testService(t, &fakeLocator{}, nil)

		_, err := svc.Get(ctx, id.RequestID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
