// Package ics renders the projected calendar as an iCalendar (RFC 5545)
// feed so dispatchers can subscribe from any calendar client.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// ContentType is the media type of an encoded feed.
const ContentType = "text/calendar; charset=utf-8"

const (
	productID = "-//fleet-calendar//ride calendar//EN"
	uidDomain = "fleet-calendar"
)

// Options describe the feed envelope.
type Options struct {
	// Name is shown by clients as the calendar title.
	Name string
	// Timezone is the IANA zone the fleet operates in (X-WR-TIMEZONE).
	Timezone string
	// Stamp is written as DTSTAMP on every event. Defaults to time.Now().
	Stamp time.Time
}

// Encode writes events as a single VCALENDAR to w. Instants are written in UTC.
func Encode(w io.Writer, events []domain.CalendarEvent, opts Options) error {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, ev := range events {
		vevent := cal.AddEvent(UID(ev))
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.End.UTC())
		vevent.SetSummary(ev.Title)
		if loc := location(ev); loc != "" {
			vevent.SetLocation(loc)
		}
		vevent.SetDescription(description(ev))
		vevent.SetProperty(ical.ComponentPropertyStatus, status(ev.Status))
		vevent.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Type)))
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("ics.Encode: %w", err)
	}
	return nil
}

// UID is the stable iCalendar identity of an event.
func UID(ev domain.CalendarEvent) string {
	return ev.ID.String() + "@" + uidDomain
}

func location(ev domain.CalendarEvent) string {
	switch {
	case ev.Origin != "" && ev.Destination != "":
		return ev.Origin + " - " + ev.Destination
	case ev.Origin != "":
		return ev.Origin
	}
	return ev.Destination
}

func description(ev domain.CalendarEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\nStatus: %s", ev.Type, ev.Status)
	if ev.IsSegment() {
		fmt.Fprintf(&b, "\nRide: %s", ev.RideID)
	}
	if ev.EndDerived {
		b.WriteString("\nEnd time estimated")
	}
	return b.String()
}

// status maps ride status onto VEVENT STATUS.
func status(s domain.RideStatus) string {
	switch s {
	case domain.RideStatusCancelled:
		return "CANCELLED"
	case domain.RideStatusPlanned:
		return "TENTATIVE"
	}
	return "CONFIRMED"
}
