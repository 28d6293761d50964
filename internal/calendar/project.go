// Package calendar turns ride and segment rows into the calendar event
// stream and narrows it with the user's filters. Everything here is pure:
// no I/O, no shared state, safe to recompute on every change.
package calendar

import (
	"bytes"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// DefaultDuration is used for any event whose source row has no end instant.
// The Mover relies on the same value when it computes a drag's duration.
const DefaultDuration = 60 * time.Minute

// Project merges rides and their segments into one ordered event sequence.
//
// A ride with segments yields one event per segment and no ride-level event;
// a ride without segments yields exactly one event. Segments whose ride is
// not in rides are dropped and logged. The result is sorted by start, then
// ride ID, then event ID.
func Project(rides []domain.Ride, segments []domain.Segment, log *slog.Logger) []domain.CalendarEvent {
	if log == nil {
		log = slog.Default()
	}

	byRide := make(map[uuid.UUID][]domain.Segment, len(rides))
	known := make(map[uuid.UUID]struct{}, len(rides))
	for _, r := range rides {
		known[r.ID] = struct{}{}
	}
	for _, s := range segments {
		if _, ok := known[s.RideID]; !ok {
			log.Warn("calendar: dropping orphaned segment",
				"segment_id", s.ID,
				"ride_id", s.RideID,
			)
			continue
		}
		byRide[s.RideID] = append(byRide[s.RideID], s)
	}

	events := make([]domain.CalendarEvent, 0, len(rides)+len(segments))
	for _, r := range rides {
		segs := byRide[r.ID]
		if len(segs) == 0 {
			events = append(events, rideEvent(r))
			continue
		}
		for _, s := range segs {
			events = append(events, segmentEvent(r, s))
		}
	}

	slices.SortStableFunc(events, compareEvents)
	return events
}

func rideEvent(r domain.Ride) domain.CalendarEvent {
	ev := baseEvent(r)
	ev.ID = r.ID
	ev.Origin = r.Origin
	ev.Destination = r.Destination
	ev.Title = title(r.Origin, r.Destination, r.Label)
	ev.Start = r.StartAt
	ev.End, ev.EndDerived = endOf(r.StartAt, r.EndAt)
	return ev
}

func segmentEvent(r domain.Ride, s domain.Segment) domain.CalendarEvent {
	ev := baseEvent(r)
	segID := s.ID
	ev.ID = s.ID
	ev.SegmentID = &segID
	ev.Origin = firstNonEmpty(s.Origin, r.Origin)
	ev.Destination = firstNonEmpty(s.Destination, r.Destination)
	ev.Title = title(ev.Origin, ev.Destination, r.Label)
	ev.Start = s.StartAt
	ev.End, ev.EndDerived = endOf(s.StartAt, s.EndAt)
	return ev
}

// baseEvent copies the metadata every event inherits from its ride.
func baseEvent(r domain.Ride) domain.CalendarEvent {
	return domain.CalendarEvent{
		RideID:     r.ID,
		Type:       r.Type,
		Status:     r.Status,
		DriverID:   r.DriverID,
		VehicleID:  r.VehicleID,
		TotalPrice: r.TotalPrice,
	}
}

func endOf(start time.Time, end *time.Time) (time.Time, bool) {
	if end == nil {
		return start.Add(DefaultDuration), true
	}
	return *end, false
}

func title(origin, destination, label string) string {
	switch {
	case origin != "" && destination != "":
		return origin + "→" + destination
	case label != "":
		return label
	case origin != "":
		return origin
	case destination != "":
		return destination
	}
	return "Ride"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func compareEvents(a, b domain.CalendarEvent) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := bytes.Compare(a.RideID[:], b.RideID[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
