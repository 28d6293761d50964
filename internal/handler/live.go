package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/service"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxMessageBytes = 4096
	outboxSize      = 16
)

// Message types on the live socket.
const (
	msgEvents  = "events"
	msgNotice  = "notice"
	msgMoved   = "moved"
	msgFilter  = "filter"
	msgMove    = "move"
	msgRefresh = "refresh"
)

// liveMessage is everything the server pushes to a live client.
type liveMessage struct {
	Type     string          `json:"type"`
	Live     *bool           `json:"live,omitempty"`
	Timezone string          `json:"timezone,omitempty"`
	Events   []eventResponse `json:"events,omitempty"`
	Notice   *service.Notice `json:"notice,omitempty"`
	Move     *moveResponse   `json:"move,omitempty"`
}

// clientMessage is everything a live client may send.
type clientMessage struct {
	Type    string         `json:"type"`
	Filter  *filterMessage `json:"filter,omitempty"`
	EventID string         `json:"event_id,omitempty"`
	Date    string         `json:"date,omitempty"`
	Time    string         `json:"time,omitempty"`
}

// filterMessage carries the four selectors. Absent or empty means "all".
type filterMessage struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id"`
}

// Live handles GET /calendar/live. Each connection owns one service.View,
// which is closed when the socket goes away.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.log.Warn("live: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	out := make(chan liveMessage, outboxSize)
	send := func(m liveMessage) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writePump(ctx, cancel, conn, out)
	}()
	defer func() { <-written }()

	var view *service.View
	view = service.NewView(s.calendar, s.feed, s.mover, s.log,
		service.WithOnUpdate(func(evs []domain.CalendarEvent) {
			send(s.eventsMessage(evs, view.Live()))
		}),
		service.WithOnNotice(func(n service.Notice) {
			send(liveMessage{Type: msgNotice, Notice: &n})
		}),
	)
	defer view.Close()
	defer cancel()

	// A failed initial fetch has already been pushed as a notice.
	_ = view.Open(ctx)
	s.log.Debug("live: client connected", "remote", r.RemoteAddr, "live", view.Live())

	s.readPump(ctx, conn, view, send)
	s.log.Debug("live: client disconnected", "remote", r.RemoteAddr)
}

// writePump is the only goroutine writing to conn.
func (s *Server) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan liveMessage) {
	defer cancel()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case m := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				s.log.Debug("live: write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, view *service.View, send func(liveMessage)) {
	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("live: read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(noticeMessage(service.NoticeWarn, "message is not valid JSON"))
			continue
		}

		switch msg.Type {
		case msgFilter:
			f, err := toFilter(msg.Filter)
			if err != nil {
				send(noticeMessage(service.NoticeWarn, unwrapMessage(err)))
				continue
			}
			view.SetFilter(f)
		case msgMove:
			send(s.move(ctx, view, msg))
		case msgRefresh:
			_ = view.Refresh(ctx)
		default:
			send(noticeMessage(service.NoticeWarn, "unknown message type "+msg.Type))
		}
	}
}

func (s *Server) move(ctx context.Context, view *service.View, msg clientMessage) liveMessage {
	resp := &moveResponse{State: string(service.MoveIdle)}
	id, err := uuid.Parse(msg.EventID)
	if err != nil {
		resp.Error = &errorDetail{Code: "validation_error", Message: "invalid event id"}
		return liveMessage{Type: msgMoved, Move: resp}
	}

	res, err := view.Move(ctx, id, msg.Date, msg.Time)
	if res.State != "" {
		resp.State = string(res.State)
	}
	if res.Event.ID != uuid.Nil {
		e := s.eventToResponse(res.Event)
		resp.Event = &e
	}
	if err != nil {
		_, code := moveError(err)
		resp.Error = &errorDetail{Code: code, Message: moveMessage(err)}
	}
	return liveMessage{Type: msgMoved, Move: resp}
}

func (s *Server) eventsMessage(evs []domain.CalendarEvent, live bool) liveMessage {
	out := make([]eventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, s.eventToResponse(ev))
	}
	return liveMessage{
		Type:     msgEvents,
		Live:     &live,
		Timezone: s.codec.Location().String(),
		Events:   out,
	}
}

func noticeMessage(level service.NoticeLevel, msg string) liveMessage {
	return liveMessage{Type: msgNotice, Notice: &service.Notice{Level: level, Message: msg}}
}

func toFilter(m *filterMessage) (domain.FilterState, error) {
	var f domain.FilterState
	if m == nil {
		return f, nil
	}
	if m.Type != "" {
		t := domain.RideType(m.Type)
		if !t.Valid() {
			return f, fmt.Errorf("%w: unknown ride type %q", domain.ErrValidation, m.Type)
		}
		f.Type = &t
	}
	if m.Status != "" {
		st := domain.RideStatus(m.Status)
		if !st.Valid() {
			return f, fmt.Errorf("%w: unknown ride status %q", domain.ErrValidation, m.Status)
		}
		f.Status = &st
	}
	var err error
	if f.DriverID, err = optionalID(m.DriverID, "driver_id"); err != nil {
		return f, err
	}
	if f.VehicleID, err = optionalID(m.VehicleID, "vehicle_id"); err != nil {
		return f, err
	}
	return f, nil
}

func optionalID(raw, name string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return &id, nil
}
