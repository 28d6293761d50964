package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/repo"
)

// mustCreateRide is a test helper that inserts a parent ride and fails the test
// if the insert does not succeed.
func mustCreateRide(t *testing.T, r repo.RideRepo, status domain.RideStatus) domain.Ride {
	t.Helper()
	input := rideFixture()
	input.Status = status
	ride, err := r.Create(context.Background(), input)
	require.NoError(t, err, "create parent ride")
	return ride
}

// segmentFixture returns a Segment ready for insertion against the given ride.
func segmentFixture(ride domain.Ride, offset time.Duration) domain.Segment {
	end := ride.StartAt.Add(offset + 90*time.Minute)
	return domain.Segment{
		RideID:      ride.ID,
		Origin:      "Sarajevo",
		Destination: "Pale",
		StartAt:     ride.StartAt.Add(offset),
		EndAt:       &end,
	}
}

func TestSegmentRepo_Create(t *testing.T) {
	rides, segments := newTestRepos(t)
	ride := mustCreateRide(t, rides, domain.RideStatusPlanned)

	input := segmentFixture(ride, 0)
	got, err := segments.Create(context.Background(), input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, ride.ID, got.RideID)
	assert.Equal(t, "Pale", got.Destination)
	assert.True(t, got.StartAt.Equal(input.StartAt))
	require.NotNil(t, got.EndAt)
	assert.True(t, got.EndAt.Equal(*input.EndAt))
}

func TestSegmentRepo_Create_UnknownRide(t *testing.T) {
	_, segments := newTestRepos(t)

	_, err := segments.Create(context.Background(), domain.Segment{RideID: uuid.New(), StartAt: time.Now()})

	assert.Error(t, err, "foreign key must reject a segment without a ride")
}

func TestSegmentRepo_ListByRideID(t *testing.T) {
	rides, segments := newTestRepos(t)
	ctx := context.Background()
	ride := mustCreateRide(t, rides, domain.RideStatusPlanned)
	other := mustCreateRide(t, rides, domain.RideStatusPlanned)

	_, err := segments.Create(ctx, segmentFixture(ride, 2*time.Hour))
	require.NoError(t, err)
	_, err = segments.Create(ctx, segmentFixture(ride, 0))
	require.NoError(t, err)
	_, err = segments.Create(ctx, segmentFixture(other, 0))
	require.NoError(t, err)

	got, err := segments.ListByRideID(ctx, ride.ID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].StartAt.Before(got[1].StartAt))

	all, err := segments.List(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 3)
}

func TestSegmentRepo_UpdateTimes(t *testing.T) {
	rides, segments := newTestRepos(t)
	ctx := context.Background()
	ride := mustCreateRide(t, rides, domain.RideStatusPlanned)
	seg, err := segments.Create(ctx, segmentFixture(ride, 0))
	require.NoError(t, err)

	start := seg.StartAt.Add(4 * time.Hour)
	end := start.Add(90 * time.Minute)
	got, err := segments.UpdateTimes(ctx, seg.ID, start, end)

	require.NoError(t, err)
	assert.True(t, got.StartAt.Equal(start))
	require.NotNil(t, got.EndAt)
	assert.True(t, got.EndAt.Equal(end))
}

func TestSegmentRepo_UpdateTimes_RideNotPlanned(t *testing.T) {
	rides, segments := newTestRepos(t)
	ctx := context.Background()
	ride := mustCreateRide(t, rides, domain.RideStatusCancelled)
	seg, err := segments.Create(ctx, segmentFixture(ride, 0))
	require.NoError(t, err)

	_, err = segments.UpdateTimes(ctx, seg.ID, seg.StartAt.Add(time.Hour), seg.StartAt.Add(2*time.Hour))

	assert.ErrorIs(t, err, domain.ErrNotReschedulable)
}

func TestSegmentRepo_UpdateTimes_NotFound(t *testing.T) {
	_, segments := newTestRepos(t)

	_, err := segments.UpdateTimes(context.Background(), uuid.New(), time.Now(), time.Now().Add(time.Hour))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSegmentRepo_Delete(t *testing.T) {
	rides, segments := newTestRepos(t)
	ctx := context.Background()
	ride := mustCreateRide(t, rides, domain.RideStatusPlanned)
	seg, err := segments.Create(ctx, segmentFixture(ride, 0))
	require.NoError(t, err)

	require.NoError(t, segments.Delete(ctx, seg.ID))
	assert.ErrorIs(t, segments.Delete(ctx, seg.ID), domain.ErrNotFound)
}
