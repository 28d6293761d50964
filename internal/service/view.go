package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-calendar/internal/calendar"
	"github.com/pkordes/fleet-calendar/internal/changefeed"
	"github.com/pkordes/fleet-calendar/internal/domain"
)

// Loader produces the full projected event stream.
type Loader interface {
	Load(ctx context.Context) ([]domain.CalendarEvent, error)
}

// Feed delivers row-change notifications. Implemented by *changefeed.Hub.
type Feed interface {
	Subscribe(table string, fn changefeed.Handler) (changefeed.SubscriptionID, error)
	Unsubscribe(id changefeed.SubscriptionID)
}

// Rescheduler moves one event. Implemented by *Mover.
type Rescheduler interface {
	Move(ctx context.Context, ev domain.CalendarEvent, newDate, newTime string) (MoveResult, error)
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a non-blocking message for the person looking at the calendar.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithOnUpdate registers fn to receive every rendered snapshot.
func WithOnUpdate(fn func([]domain.CalendarEvent)) ViewOption {
	return func(v *View) { v.onUpdate = fn }
}

// WithOnNotice registers fn to receive notices.
func WithOnNotice(fn func(Notice)) ViewOption {
	return func(v *View) { v.onNotice = fn }
}

// WithTables overrides the tables the view subscribes to.
func WithTables(tables ...string) ViewOption {
	return func(v *View) { v.tables = tables }
}

// View is one client's live calendar: the cached projection, the active
// filter, and the subscriptions that keep both current.
//
// Notifications only mark the view dirty; a single worker goroutine performs
// the refetch, so bursts collapse into one refresh and refreshes never
// overlap. Close must be called to release the subscriptions.
type View struct {
	loader Loader
	feed   Feed
	mover  Rescheduler
	log    *slog.Logger
	tables []string

	onUpdate func([]domain.CalendarEvent)
	onNotice func(Notice)

	mu     sync.Mutex
	all    []domain.CalendarEvent
	filter domain.FilterState
	subs   []changefeed.SubscriptionID
	live   bool

	// refreshMu serializes fetches; emitMu orders snapshot computation with
	// delivery so the last snapshot delivered is always the newest.
	refreshMu sync.Mutex
	emitMu    sync.Mutex

	dirty     chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewView constructs a View. mover may be nil for read-only views.
func NewView(loader Loader, feed Feed, mover Rescheduler, log *slog.Logger, opts ...ViewOption) *View {
	v := &View{
		loader: loader,
		feed:   feed,
		mover:  mover,
		log:    log,
		tables: []string{changefeed.TableRides, changefeed.TableSegments},
		dirty:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Open subscribes to the change feed, starts the refresh worker and performs
// the initial fetch. A subscribe failure leaves the view usable but not live.
// The returned error is the initial fetch error, if any.
func (v *View) Open(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	v.subscribe()

	v.wg.Add(1)
	go v.run(ctx)

	return v.Refresh(ctx)
}

func (v *View) subscribe() {
	if v.feed == nil {
		return
	}
	subs := make([]changefeed.SubscriptionID, 0, len(v.tables))
	for _, table := range v.tables {
		id, err := v.feed.Subscribe(table, v.markDirty)
		if err != nil {
			for _, s := range subs {
				v.feed.Unsubscribe(s)
			}
			v.log.Warn("calendar view not live", "table", table, "error", err)
			v.notice(NoticeWarn, "live updates are unavailable; the calendar will not refresh automatically")
			return
		}
		subs = append(subs, id)
	}

	v.mu.Lock()
	v.subs = subs
	v.live = true
	v.mu.Unlock()
}

func (v *View) markDirty(changefeed.Notification) {
	select {
	case v.dirty <- struct{}{}:
	default:
	}
}

func (v *View) run(ctx context.Context) {
	defer v.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.dirty:
			_ = v.Refresh(ctx)
		}
	}
}

// Close unsubscribes and waits for the refresh worker. Safe to call more
// than once and before Open.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		subs := v.subs
		v.subs = nil
		v.live = false
		v.mu.Unlock()

		for _, id := range subs {
			v.feed.Unsubscribe(id)
		}
		if v.cancel != nil {
			v.cancel()
		}
		v.wg.Wait()
	})
}

// Refresh refetches the projection and re-renders. On failure the previous
// list is kept and a notice is emitted.
func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	events, err := v.loader.Load(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		v.log.Error("calendar refresh failed", "error", err)
		v.notice(NoticeError, "could not refresh the calendar; showing the last known events")
		return fmt.Errorf("service.View.Refresh: %w", err)
	}

	v.mu.Lock()
	v.all = events
	v.mu.Unlock()
	v.render()
	return nil
}

// render computes the filtered snapshot and hands it to onUpdate.
func (v *View) render() {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	snapshot := calendar.Filter(v.all, v.filter)
	v.mu.Unlock()

	if v.onUpdate != nil {
		v.onUpdate(snapshot)
	}
}

func (v *View) notice(level NoticeLevel, msg string) {
	if v.onNotice != nil {
		v.onNotice(Notice{Level: level, Message: msg})
	}
}

// Events returns the current rendered list.
func (v *View) Events() []domain.CalendarEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return calendar.Filter(v.all, v.filter)
}

// Filter returns the active filter.
func (v *View) Filter() domain.FilterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Live reports whether the view receives change notifications.
func (v *View) Live() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.live
}

// SetFilter replaces the whole filter and re-renders from the cached list.
func (v *View) SetFilter(f domain.FilterState) {
	v.update(func(cur *domain.FilterState) { *cur = f })
}

// SetType sets or clears (nil) the ride type filter.
func (v *View) SetType(t *domain.RideType) {
	v.update(func(cur *domain.FilterState) { cur.Type = t })
}

// SetStatus sets or clears (nil) the status filter.
func (v *View) SetStatus(s *domain.RideStatus) {
	v.update(func(cur *domain.FilterState) { cur.Status = s })
}

// SetDriver sets or clears (nil) the driver filter.
func (v *View) SetDriver(id *uuid.UUID) {
	v.update(func(cur *domain.FilterState) { cur.DriverID = id })
}

// SetVehicle sets or clears (nil) the vehicle filter.
func (v *View) SetVehicle(id *uuid.UUID) {
	v.update(func(cur *domain.FilterState) { cur.VehicleID = id })
}

func (v *View) update(fn func(*domain.FilterState)) {
	v.mu.Lock()
	fn(&v.filter)
	v.mu.Unlock()
	v.render()
}

// Move reschedules one of the view's events and refreshes on commit.
// Returns domain.ErrNotFound if the event is not in the view.
func (v *View) Move(ctx context.Context, eventID uuid.UUID, date, clock string) (MoveResult, error) {
	if v.mover == nil {
		return MoveResult{}, fmt.Errorf("service.View.Move: read-only view: %w", domain.ErrNotReschedulable)
	}

	v.mu.Lock()
	ev, ok := calendar.Find(v.all, eventID)
	v.mu.Unlock()
	if !ok {
		return MoveResult{}, fmt.Errorf("service.View.Move: event %s: %w", eventID, domain.ErrNotFound)
	}

	res, err := v.mover.Move(ctx, ev, date, clock)
	switch {
	case errors.Is(err, domain.ErrNotReschedulable):
		v.notice(NoticeWarn, fmt.Sprintf("%s rides cannot be moved", ev.Status))
		return res, err
	case errors.Is(err, domain.ErrMoveInProgress):
		v.notice(NoticeWarn, "this event is already being moved")
		return res, err
	case IsRejection(err):
		v.notice(NoticeWarn, "the new date or time is not valid")
		return res, err
	case err != nil:
		v.notice(NoticeError, "could not save the move; the event stays at its original time")
		return res, err
	}

	v.notice(NoticeInfo, fmt.Sprintf("%s moved", ev.Title))
	_ = v.Refresh(ctx)
	return res, nil
}
