package ics_test

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/ics"
)

func sampleEvents() []domain.CalendarEvent {
	rideID := uuid.New()
	segID := uuid.New()
	return []domain.CalendarEvent{
		{
			ID:          rideID,
			RideID:      rideID,
			Title:       "Sarajevo→Mostar",
			Type:        domain.RideTypeCharter,
			Status:      domain.RideStatusPlanned,
			Origin:      "Sarajevo",
			Destination: "Mostar",
			Start:       time.Date(2024, 8, 30, 7, 0, 0, 0, time.UTC),
			End:         time.Date(2024, 8, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:         segID,
			RideID:     rideID,
			SegmentID:  &segID,
			Title:      "Ride",
			Type:       domain.RideTypeCharter,
			Status:     domain.RideStatusCancelled,
			Start:      time.Date(2024, 8, 30, 12, 0, 0, 0, time.UTC),
			End:        time.Date(2024, 8, 30, 13, 0, 0, 0, time.UTC),
			EndDerived: true,
		},
	}
}

func encode(t *testing.T, events []domain.CalendarEvent) *ical.Calendar {
	t.Helper()
	var buf bytes.Buffer
	err := ics.Encode(&buf, events, ics.Options{
		Name:     "Fleet",
		Timezone: "Europe/Sarajevo",
		Stamp:    time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, buf.String(), "X-WR-TIMEZONE:Europe/Sarajevo")

	cal, err := ical.ParseCalendar(&buf)
	require.NoError(t, err)
	return cal
}

func TestEncode_OneVEventPerEvent(t *testing.T) {
	events := sampleEvents()

	cal := encode(t, events)

	require.Len(t, cal.Events(), 2)
	first := cal.Events()[0]
	assert.Equal(t, ics.UID(events[0]), first.Id())
	assert.Equal(t, "Sarajevo→Mostar", first.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "TENTATIVE", first.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Equal(t, "20240830T070000Z", first.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "20240830T090000Z", first.GetProperty(ical.ComponentPropertyDtEnd).Value)

	second := cal.Events()[1]
	assert.Equal(t, "CANCELLED", second.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Nil(t, second.GetProperty(ical.ComponentPropertyLocation))
}

func TestEncode_Empty(t *testing.T) {
	cal := encode(t, nil)

	assert.Empty(t, cal.Events())
}
