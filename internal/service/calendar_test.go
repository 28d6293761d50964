package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/service"
)

// A ride with segments is represented only by its segment events; a ride
// without segments gets exactly one ride-level event.
func TestCalendarService_Load_ProjectsRidesAndSegments(t *testing.T) {
	withLegs := plannedRide("Airport", local(30, 9, 0), nil)
	seg := domain.Segment{
		ID:          uuid.New(),
		RideID:      withLegs.ID,
		Origin:      "Sarajevo",
		Destination: "Mostar",
		StartAt:     local(30, 10, 0),
		EndAt:       ptr(local(30, 12, 0)),
	}
	plain := plannedRide("Depot shuttle", local(30, 13, 0), nil)
	rides, segments := staticRepos([]domain.Ride{withLegs, plain}, []domain.Segment{seg})
	svc := service.NewCalendarService(rides, segments, quietLogger())

	got, err := svc.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, seg.ID, got[0].ID)
	assert.Equal(t, withLegs.ID, got[0].RideID)
	assert.True(t, got[0].IsSegment())
	assert.Equal(t, "Sarajevo→Mostar", got[0].Title)

	assert.Equal(t, plain.ID, got[1].ID)
	assert.False(t, got[1].IsSegment())
	assert.Equal(t, "Depot shuttle", got[1].Title)

	for _, ev := range got {
		assert.NotEqual(t, withLegs.ID, ev.ID, "ride with segments must not get a ride-level event")
	}
}

func TestCalendarService_Load_RideRepoError(t *testing.T) {
	dbErr := errors.New("connection reset")
	svc := service.NewCalendarService(
		&mockRideRepo{list: func(context.Context) ([]domain.Ride, error) { return nil, dbErr }},
		&mockSegmentRepo{},
		quietLogger(),
	)

	_, err := svc.Load(context.Background())

	assert.ErrorIs(t, err, dbErr)
}

func TestCalendarService_Load_SegmentRepoError(t *testing.T) {
	dbErr := errors.New("connection reset")
	rides, _ := staticRepos(nil, nil)
	svc := service.NewCalendarService(
		rides,
		&mockSegmentRepo{list: func(context.Context) ([]domain.Segment, error) { return nil, dbErr }},
		quietLogger(),
	)

	_, err := svc.Load(context.Background())

	assert.ErrorIs(t, err, dbErr)
}

func TestCalendarService_Events_FilterAndWindow(t *testing.T) {
	early := plannedRide("early", local(29, 8, 0), nil)
	late := plannedRide("late", local(31, 8, 0), nil)
	local1 := plannedRide("local", local(30, 8, 0), nil)
	local1.Type = domain.RideTypeLocal

	rides, segments := staticRepos([]domain.Ride{early, late, local1}, nil)
	svc := service.NewCalendarService(rides, segments, quietLogger())

	charter := domain.RideTypeCharter
	got, err := svc.Events(context.Background(), service.Query{
		Filter: domain.FilterState{Type: &charter},
		From:   local(30, 0, 0),
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID, got[0].ID)
}

func TestCalendarService_Events_EmptyIsNonNil(t *testing.T) {
	rides, segments := staticRepos(nil, nil)
	svc := service.NewCalendarService(rides, segments, quietLogger())

	got, err := svc.Events(context.Background(), service.Query{})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCalendarService_Find(t *testing.T) {
	ride := plannedRide("Airport", local(30, 9, 0), nil)
	rides, segments := staticRepos([]domain.Ride{ride}, nil)
	svc := service.NewCalendarService(rides, segments, quietLogger())

	got, err := svc.Find(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, "Airport", got.Title)

	_, err = svc.Find(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
