// Package domain contains the core data types for the fleet calendar.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, calendar, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RideType is the closed set of transport job kinds.
type RideType string

const (
	RideTypeScheduledLine RideType = "scheduled_line"
	RideTypeCharter       RideType = "charter"
	RideTypeLocal         RideType = "local"
)

// Valid reports whether t is one of the known ride types.
func (t RideType) Valid() bool {
	switch t {
	case RideTypeScheduledLine, RideTypeCharter, RideTypeLocal:
		return true
	}
	return false
}

// RideStatus is the lifecycle state of a ride.
type RideStatus string

const (
	RideStatusPlanned   RideStatus = "planned"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Valid reports whether s is one of the known ride statuses.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusPlanned, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// Ride is a single transport job.
// StartAt and EndAt are UTC instants; EndAt is nil when the ride has no
// explicit end and the calendar derives one.
type Ride struct {
	ID          uuid.UUID
	Type        RideType
	Status      RideStatus
	Label       string
	Origin      string
	Destination string
	StartAt     time.Time
	EndAt       *time.Time
	DriverID    *uuid.UUID
	VehicleID   *uuid.UUID
	TotalPrice  *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
