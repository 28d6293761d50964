package domain

import (
	"time"

	"github.com/google/uuid"
)

// Segment is one leg of a ride with its own calendar placement.
// A segment never exists without its ride; Origin and Destination may be
// empty, in which case the ride's own labels are used for display.
type Segment struct {
	ID          uuid.UUID
	RideID      uuid.UUID
	Origin      string
	Destination string
	StartAt     time.Time
	EndAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
