// Package service contains the calendar use cases: loading the projected
// event stream, rescheduling events, and keeping a live per-client view.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/calendar"
	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/repo"
)

// Query narrows a calendar listing. Zero From/To leave the window open.
type Query struct {
	Filter domain.FilterState
	From   time.Time
	To     time.Time
}

// CalendarService reads rides and segments and projects them into events.
type CalendarService struct {
	rides    repo.RideRepo
	segments repo.SegmentRepo
	log      *slog.Logger
}

// NewCalendarService constructs a CalendarService backed by the provided repos.
func NewCalendarService(rides repo.RideRepo, segments repo.SegmentRepo, log *slog.Logger) *CalendarService {
	return &CalendarService{rides: rides, segments: segments, log: log}
}

// Load fetches every ride and segment and returns the full projection.
func (s *CalendarService) Load(ctx context.Context) ([]domain.CalendarEvent, error) {
	rides, err := s.rides.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CalendarService.Load: %w", err)
	}
	segments, err := s.segments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CalendarService.Load: %w", err)
	}
	return calendar.Project(rides, segments, s.log), nil
}

// Events returns the projection narrowed by q.
// Always returns a non-nil slice so callers can safely range over it.
func (s *CalendarService) Events(ctx context.Context, q Query) ([]domain.CalendarEvent, error) {
	events, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.Window(calendar.Filter(events, q.Filter), q.From, q.To), nil
}

// Find returns one event by its calendar identity.
// Returns domain.ErrNotFound if no event has that ID.
func (s *CalendarService) Find(ctx context.Context, id uuid.UUID) (domain.CalendarEvent, error) {
	events, err := s.Load(ctx)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	ev, ok := calendar.Find(events, id)
	if !ok {
		return domain.CalendarEvent{}, fmt.Errorf("service.CalendarService.Find: event %s: %w", id, domain.ErrNotFound)
	}
	return ev, nil
}
