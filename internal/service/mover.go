package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/repo"
	"github.com/pkordes/fleet-calendar/internal/timecodec"
)

// MoveState is the lifecycle of one event during a drag.
type MoveState string

const (
	MoveIdle         MoveState = "idle"
	MovePendingWrite MoveState = "pendingWrite"
	MoveCommitted    MoveState = "committed"
	MoveReverted     MoveState = "reverted"
)

// Locker guards an event against concurrent moves across processes.
// Implemented by lock.RedisStore and lock.MemoryStore.
type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MoveResult is where the event ended up. On MoveCommitted Event carries the
// new instants; on MoveReverted or MoveIdle it is the event as it was.
type MoveResult struct {
	Event domain.CalendarEvent
	State MoveState
}

// Mover applies drag-and-drop reschedules.
type Mover struct {
	rides    repo.RideRepo
	segments repo.SegmentRepo
	codec    *timecodec.Codec
	locker   Locker
	log      *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

// NewMover constructs a Mover. locker may be nil, in which case only the
// in-process pending set guards against double moves.
func NewMover(rides repo.RideRepo, segments repo.SegmentRepo, codec *timecodec.Codec, locker Locker, log *slog.Logger) *Mover {
	return &Mover{
		rides:    rides,
		segments: segments,
		codec:    codec,
		locker:   locker,
		log:      log,
		pending:  make(map[uuid.UUID]struct{}),
	}
}

// State reports MovePendingWrite while a write for id is in flight and
// MoveIdle otherwise.
func (m *Mover) State(id uuid.UUID) MoveState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; ok {
		return MovePendingWrite
	}
	return MoveIdle
}

// Move shifts ev so it starts at newDate/newTime (local civil time) and keeps
// its duration.
//
// Returns domain.ErrNotReschedulable without any I/O if the ride is not
// planned, domain.ErrValidation for malformed input, and
// domain.ErrMoveInProgress if ev is already being moved. A failed write
// yields MoveReverted together with the error.
func (m *Mover) Move(ctx context.Context, ev domain.CalendarEvent, newDate, newTime string) (MoveResult, error) {
	idle := MoveResult{Event: ev, State: MoveIdle}

	if ev.Status != domain.RideStatusPlanned {
		return idle, fmt.Errorf("service.Mover.Move: %s ride: %w", ev.Status, domain.ErrNotReschedulable)
	}
	start, err := m.codec.ToStorageInstant(newDate, newTime)
	if err != nil {
		return idle, fmt.Errorf("service.Mover.Move: %w", err)
	}

	release, err := m.begin(ctx, ev.ID)
	if err != nil {
		return idle, fmt.Errorf("service.Mover.Move: %w", err)
	}
	defer release()

	end := start.Add(ev.Duration())
	if err := m.write(ctx, ev, start, end); err != nil {
		m.log.Error("move failed, event reverted",
			"event_id", ev.ID,
			"ride_id", ev.RideID,
			"error", err,
		)
		return MoveResult{Event: ev, State: MoveReverted}, fmt.Errorf("service.Mover.Move: %w", err)
	}

	moved := ev
	moved.Start, moved.End = start, end
	m.log.Info("event moved",
		"event_id", ev.ID,
		"ride_id", ev.RideID,
		"from", ev.Start,
		"to", start,
	)
	return MoveResult{Event: moved, State: MoveCommitted}, nil
}

// write persists the new instants. Segment rows always store both; ride rows
// keep a NULL end NULL so the projector keeps deriving it.
func (m *Mover) write(ctx context.Context, ev domain.CalendarEvent, start, end time.Time) error {
	if ev.IsSegment() {
		_, err := m.segments.UpdateTimes(ctx, *ev.SegmentID, start, end)
		return err
	}
	var storedEnd *time.Time
	if !ev.EndDerived {
		storedEnd = &end
	}
	_, err := m.rides.UpdateTimes(ctx, ev.RideID, start, storedEnd)
	return err
}

// begin marks id as pendingWrite and takes the shared lock. The returned
// func undoes both.
func (m *Mover) begin(ctx context.Context, id uuid.UUID) (func(), error) {
	m.mu.Lock()
	if _, ok := m.pending[id]; ok {
		m.mu.Unlock()
		return nil, domain.ErrMoveInProgress
	}
	m.pending[id] = struct{}{}
	m.mu.Unlock()

	done := func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}

	if m.locker == nil {
		return done, nil
	}

	key := id.String()
	ok, err := m.locker.Acquire(ctx, key)
	switch {
	case err != nil:
		// Without the shared lock the in-process guard still applies.
		m.log.Warn("move lock unavailable", "event_id", id, "error", err)
		return done, nil
	case !ok:
		done()
		return nil, domain.ErrMoveInProgress
	}

	return func() {
		// The request context may already be cancelled; release regardless.
		if err := m.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("move lock release failed", "event_id", id, "error", err)
		}
		done()
	}, nil
}

// IsRejection reports whether err is a move refused before any write.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrNotReschedulable) ||
		errors.Is(err, domain.ErrMoveInProgress) ||
		errors.Is(err, domain.ErrValidation)
}
