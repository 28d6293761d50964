package service_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/repo"
)

// mockRideRepo is a hand-written test double for repo.RideRepo.
// Each method is a function field: set only the ones your test needs.
type mockRideRepo struct {
	create      func(ctx context.Context, ride domain.Ride) (domain.Ride, error)
	getByID     func(ctx context.Context, id uuid.UUID) (domain.Ride, error)
	list        func(ctx context.Context) ([]domain.Ride, error)
	updateTimes func(ctx context.Context, id uuid.UUID, start time.Time, end *time.Time) (domain.Ride, error)
	delete      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRideRepo) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	return m.create(ctx, ride)
}
func (m *mockRideRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	return m.getByID(ctx, id)
}
func (m *mockRideRepo) List(ctx context.Context) ([]domain.Ride, error) {
	return m.list(ctx)
}
func (m *mockRideRepo) UpdateTimes(ctx context.Context, id uuid.UUID, start time.Time, end *time.Time) (domain.Ride, error) {
	return m.updateTimes(ctx, id, start, end)
}
func (m *mockRideRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.RideRepo = (*mockRideRepo)(nil)

type mockSegmentRepo struct {
	create       func(ctx context.Context, s domain.Segment) (domain.Segment, error)
	getByID      func(ctx context.Context, id uuid.UUID) (domain.Segment, error)
	list         func(ctx context.Context) ([]domain.Segment, error)
	listByRideID func(ctx context.Context, rideID uuid.UUID) ([]domain.Segment, error)
	updateTimes  func(ctx context.Context, id uuid.UUID, start, end time.Time) (domain.Segment, error)
	delete       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSegmentRepo) Create(ctx context.Context, s domain.Segment) (domain.Segment, error) {
	return m.create(ctx, s)
}
func (m *mockSegmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Segment, error) {
	return m.getByID(ctx, id)
}
func (m *mockSegmentRepo) List(ctx context.Context) ([]domain.Segment, error) {
	return m.list(ctx)
}
func (m *mockSegmentRepo) ListByRideID(ctx context.Context, rideID uuid.UUID) ([]domain.Segment, error) {
	return m.listByRideID(ctx, rideID)
}
func (m *mockSegmentRepo) UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (domain.Segment, error) {
	return m.updateTimes(ctx, id, start, end)
}
func (m *mockSegmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.SegmentRepo = (*mockSegmentRepo)(nil)

// ---- helpers ---------------------------------------------------------------

var sarajevo = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Sarajevo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// local builds an instant on the given day of August 2024 in Sarajevo time.
func local(day, hour, min int) time.Time {
	return time.Date(2024, time.August, day, hour, min, 0, 0, sarajevo).UTC()
}

func ptr[T any](v T) *T { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticRepos returns repos whose List calls serve the given rows.
func staticRepos(rides []domain.Ride, segments []domain.Segment) (*mockRideRepo, *mockSegmentRepo) {
	return &mockRideRepo{
			list: func(context.Context) ([]domain.Ride, error) { return rides, nil },
		}, &mockSegmentRepo{
			list: func(context.Context) ([]domain.Segment, error) { return segments, nil },
		}
}

func plannedRide(label string, start time.Time, end *time.Time) domain.Ride {
	return domain.Ride{
		ID:      uuid.New(),
		Type:    domain.RideTypeCharter,
		Status:  domain.RideStatusPlanned,
		Label:   label,
		StartAt: start,
		EndAt:   end,
	}
}
