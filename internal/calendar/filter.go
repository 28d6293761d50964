package calendar

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// Filter returns the events that satisfy every active selector in state,
// in their original order. The input slice is never modified.
func Filter(events []domain.CalendarEvent, state domain.FilterState) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if Matches(ev, state) {
			out = append(out, ev)
		}
	}
	return out
}

// Matches reports whether ev satisfies every active selector in state.
func Matches(ev domain.CalendarEvent, state domain.FilterState) bool {
	if state.Type != nil && ev.Type != *state.Type {
		return false
	}
	if state.Status != nil && ev.Status != *state.Status {
		return false
	}
	if state.DriverID != nil && (ev.DriverID == nil || *ev.DriverID != *state.DriverID) {
		return false
	}
	if state.VehicleID != nil && (ev.VehicleID == nil || *ev.VehicleID != *state.VehicleID) {
		return false
	}
	return true
}

// Window keeps events that overlap [from, to). A zero bound is open.
func Window(events []domain.CalendarEvent, from, to time.Time) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !from.IsZero() && !ev.End.After(from) {
			continue
		}
		if !to.IsZero() && !ev.Start.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Find returns the event with the given ID.
func Find(events []domain.CalendarEvent, id uuid.UUID) (domain.CalendarEvent, bool) {
	for _, ev := range events {
		if ev.ID == id {
			return ev, true
		}
	}
	return domain.CalendarEvent{}, false
}
