// Package handler implements the HTTP and WebSocket surface of the fleet
// calendar. All handlers are methods on Server, which Routes mounts on a chi
// router. Methods are split into files by resource (health.go, calendar.go,
// live.go) but share the same Server struct and its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/service"
	"github.com/pkordes/fleet-calendar/internal/timecodec"
)

// CalendarServicer defines the read operations the calendar handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type CalendarServicer interface {
	Load(ctx context.Context) ([]domain.CalendarEvent, error)
	Events(ctx context.Context, q service.Query) ([]domain.CalendarEvent, error)
	Find(ctx context.Context, id uuid.UUID) (domain.CalendarEvent, error)
}

// Server holds every handler dependency.
type Server struct {
	calendar     CalendarServicer
	mover        service.Rescheduler
	feed         service.Feed
	codec        *timecodec.Codec
	log          *slog.Logger
	calendarName string
	upgrader     websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithCalendarName sets the X-WR-CALNAME of the iCalendar export.
func WithCalendarName(name string) Option {
	return func(s *Server) { s.calendarName = name }
}

// WithCheckOrigin sets the origin check applied to WebSocket upgrades.
// The default accepts same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithAllowedOrigins accepts WebSocket upgrades from the given browser
// origins in addition to same-origin requests. It takes the same list the
// CORS middleware is configured with; "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return WithCheckOrigin(originChecker(origins))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	wildcard := slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// NewServer constructs the Server with all its dependencies.
func NewServer(calendar CalendarServicer, mover service.Rescheduler, feed service.Feed, codec *timecodec.Codec, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		calendar:     calendar,
		mover:        mover,
		feed:         feed,
		codec:        codec,
		log:          log,
		calendarName: "Fleet calendar",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns a router with every endpoint registered.
// main.go mounts it behind the shared middleware stack.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/events", s.ListEvents)
		r.Post("/events/{id}/move", s.MoveEvent)
		r.Get("/live", s.Live)
	})
	return r
}
