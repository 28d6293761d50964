package domain

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is the derived, non-persisted unit rendered by the calendar.
// ID is the segment ID for segment events and the ride ID otherwise.
// Start and End are UTC instants; EndDerived is true when End was defaulted
// because the source row had no end.
type CalendarEvent struct {
	ID          uuid.UUID
	RideID      uuid.UUID
	SegmentID   *uuid.UUID
	Title       string
	Type        RideType
	Status      RideStatus
	Origin      string
	Destination string
	Start       time.Time
	End         time.Time
	EndDerived  bool
	DriverID    *uuid.UUID
	VehicleID   *uuid.UUID
	TotalPrice  *float64
}

// IsSegment reports whether the event was projected from a segment row.
func (e CalendarEvent) IsSegment() bool {
	return e.SegmentID != nil
}

// Duration returns End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// FilterState holds the four calendar selectors.
// A nil selector means "all" and imposes no constraint.
type FilterState struct {
	Type      *RideType
	Status    *RideStatus
	DriverID  *uuid.UUID
	VehicleID *uuid.UUID
}

// IsEmpty reports whether no selector is active.
func (f FilterState) IsEmpty() bool {
	return f.Type == nil && f.Status == nil && f.DriverID == nil && f.VehicleID == nil
}
