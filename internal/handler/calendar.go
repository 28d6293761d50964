package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-calendar/internal/domain"
	"github.com/pkordes/fleet-calendar/internal/ics"
	"github.com/pkordes/fleet-calendar/internal/service"
	"github.com/pkordes/fleet-calendar/internal/timecodec"
)

// Export formats accepted by ?format=.
const (
	formatJSON = "json"
	formatICS  = "ics"
)

// listEventsParams mirrors the query parameters of GET /calendar/events.
type listEventsParams struct {
	Type      *string
	Status    *string
	DriverID  *openapi_types.UUID
	VehicleID *openapi_types.UUID
	From      *openapi_types.Date
	To        *openapi_types.Date
	Format    *string
}

type eventResponse struct {
	ID          uuid.UUID  `json:"id"`
	RideID      uuid.UUID  `json:"ride_id"`
	SegmentID   *uuid.UUID `json:"segment_id,omitempty"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Origin      string     `json:"origin,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	EndDerived  bool       `json:"end_derived"`
	LocalDate   string     `json:"local_date"`
	LocalStart  string     `json:"local_start"`
	LocalEnd    string     `json:"local_end"`
	Display     string     `json:"display"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	VehicleID   *uuid.UUID `json:"vehicle_id,omitempty"`
	TotalPrice  *float64   `json:"total_price,omitempty"`
	Movable     bool       `json:"movable"`
}

type eventsResponse struct {
	Timezone string          `json:"timezone"`
	Events   []eventResponse `json:"events"`
}

type moveRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type moveResponse struct {
	State string         `json:"state"`
	Event *eventResponse `json:"event,omitempty"`
	Error *errorDetail   `json:"error,omitempty"`
}

// ListEvents handles GET /calendar/events.
// Supports ?type=, ?status=, ?driver_id=, ?vehicle_id= selectors, a ?from=/?to=
// local-date window, and ?format=ics (or Accept: text/calendar) for an
// iCalendar feed. Default is JSON.
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	var params listEventsParams
	if err := bindListEventsParams(r, &params); err != nil {
		badRequest(w, err.Error())
		return
	}

	q, err := s.toQuery(params)
	if err != nil {
		validationFailed(w, err)
		return
	}

	events, err := s.calendar.Events(r.Context(), q)
	if err != nil {
		s.log.Error("list calendar events", "error", err)
		internalError(w)
		return
	}

	if wantICS(r, params.Format) {
		s.writeICS(w, events)
		return
	}

	out := eventsResponse{
		Timezone: s.codec.Location().String(),
		Events:   make([]eventResponse, 0, len(events)),
	}
	for _, ev := range events {
		out.Events = append(out.Events, s.eventToResponse(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// MoveEvent handles POST /calendar/events/{id}/move.
func (s *Server) MoveEvent(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		badRequest(w, "invalid event id")
		return
	}

	var body moveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		badRequest(w, "request body must be {\"date\":\"YYYY-MM-DD\",\"time\":\"HH:MM\"}")
		return
	}

	ev, err := s.calendar.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "event not found")
			return
		}
		s.log.Error("find calendar event", "event_id", id, "error", err)
		internalError(w)
		return
	}

	res, err := s.mover.Move(r.Context(), ev, body.Date, body.Time)
	resp := moveResponse{State: string(res.State)}
	if res.Event.ID != uuid.Nil {
		e := s.eventToResponse(res.Event)
		resp.Event = &e
	}
	if err != nil {
		status, code := moveError(err)
		resp.Error = &errorDetail{Code: code, Message: moveMessage(err)}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func moveMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return unwrapMessage(err)
	case errors.Is(err, domain.ErrNotReschedulable):
		return "only planned rides can be moved"
	case errors.Is(err, domain.ErrMoveInProgress):
		return "event is already being moved"
	}
	return "could not save the move; the event keeps its original time"
}

func (s *Server) writeICS(w http.ResponseWriter, events []domain.CalendarEvent) {
	var buf bytes.Buffer
	err := ics.Encode(&buf, events, ics.Options{
		Name:     s.calendarName,
		Timezone: s.codec.Location().String(),
	})
	if err != nil {
		s.log.Error("encode ics feed", "error", err)
		internalError(w)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="fleet-calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// --- mapping helpers --------------------------------------------------------

func bindListEventsParams(r *http.Request, p *listEventsParams) error {
	q := r.URL.Query()
	for _, b := range []struct {
		name string
		dest any
	}{
		{"type", &p.Type},
		{"status", &p.Status},
		{"driver_id", &p.DriverID},
		{"vehicle_id", &p.VehicleID},
		{"from", &p.From},
		{"to", &p.To},
		{"format", &p.Format},
	} {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return errors.New("invalid query parameter " + b.name)
		}
	}
	return nil
}

// toQuery validates the selectors and converts the local-date window to
// storage instants. The window's upper bound is pinned to the end of the day.
func (s *Server) toQuery(p listEventsParams) (service.Query, error) {
	var q service.Query
	if p.Type != nil {
		t := domain.RideType(*p.Type)
		if !t.Valid() {
			return q, fmt.Errorf("%w: unknown ride type %q", domain.ErrValidation, *p.Type)
		}
		q.Filter.Type = &t
	}
	if p.Status != nil {
		st := domain.RideStatus(*p.Status)
		if !st.Valid() {
			return q, fmt.Errorf("%w: unknown ride status %q", domain.ErrValidation, *p.Status)
		}
		q.Filter.Status = &st
	}
	q.Filter.DriverID = p.DriverID
	q.Filter.VehicleID = p.VehicleID

	if p.From != nil {
		from, err := s.codec.ToStorageInstant(p.From.Format(timecodec.DateLayout), "00:00")
		if err != nil {
			return q, err
		}
		q.From = from
	}
	if p.To != nil {
		to, err := s.codec.ToStorageEndOfDay(p.To.Format(timecodec.DateLayout))
		if err != nil {
			return q, err
		}
		q.To = to
	}
	if p.Format != nil && *p.Format != formatJSON && *p.Format != formatICS {
		return q, fmt.Errorf("%w: format must be json or ics", domain.ErrValidation)
	}
	return q, nil
}

func wantICS(r *http.Request, format *string) bool {
	if format != nil {
		return *format == formatICS
	}
	return strings.Contains(r.Header.Get("Accept"), "text/calendar")
}

// eventToResponse converts a domain.CalendarEvent into its JSON shape, adding
// the local renderings clients display.
func (s *Server) eventToResponse(ev domain.CalendarEvent) eventResponse {
	return eventResponse{
		ID:          ev.ID,
		RideID:      ev.RideID,
		SegmentID:   ev.SegmentID,
		Title:       ev.Title,
		Type:        string(ev.Type),
		Status:      string(ev.Status),
		Origin:      ev.Origin,
		Destination: ev.Destination,
		Start:       ev.Start.UTC(),
		End:         ev.End.UTC(),
		EndDerived:  ev.EndDerived,
		LocalDate:   s.codec.LocalDateOf(ev.Start),
		LocalStart:  s.codec.LocalTimeOf(ev.Start),
		LocalEnd:    s.codec.LocalTimeOf(ev.End),
		Display:     s.codec.DisplayDateTime(ev.Start) + "–" + s.codec.DisplayTime(ev.End),
		DriverID:    ev.DriverID,
		VehicleID:   ev.VehicleID,
		TotalPrice:  ev.TotalPrice,
		Movable:     ev.Status == domain.RideStatusPlanned,
	}
}
