// Package timecodec converts between civil date/time strings in the
// deployment's fixed timezone and the UTC instants kept in storage.
// It is the only place in the code base where that conversion happens.
package timecodec

import (
	"fmt"
	"time"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// Layouts for values crossing the UI boundary.
const (
	DateLayout            = "2006-01-02"
	TimeLayout            = "15:04"
	DisplayDateLayout     = "02.01.2006"
	DisplayTimeLayout     = "15:04"
	DisplayDateTimeLayout = "02.01.2006 15:04"
)

// Codec holds the fixed civil timezone and the clock used for "now" defaults.
type Codec struct {
	loc *time.Location
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces time.Now. Tests use it to pin the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// New loads the IANA zone named by zone and returns a Codec for it.
func New(zone string, opts ...Option) (*Codec, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("timecodec.New: load zone %q: %w", zone, err)
	}
	c := &Codec{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location returns the codec's civil timezone.
func (c *Codec) Location() *time.Location {
	return c.loc
}

// ToStorageInstant interprets localDate ("2006-01-02") and localTime
// ("15:04") as wall-clock time in the codec's zone and returns the UTC instant.
//
// Repeated wall times (clocks turned back) resolve to the earlier instant.
// Wall times inside a spring-forward gap are read with the offset in force
// before the gap, so 02:30 in a one-hour gap becomes 03:30 after the change.
func (c *Codec) ToStorageInstant(localDate, localTime string) (time.Time, error) {
	d, err := time.Parse(DateLayout, localDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", domain.ErrValidation, localDate)
	}
	t, err := time.Parse(TimeLayout, localTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q, want HH:MM", domain.ErrValidation, localTime)
	}
	return c.resolve(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0), nil
}

// ToStorageEndOfDay returns the UTC instant of 23:59:59 local on localDate.
func (c *Codec) ToStorageEndOfDay(localDate string) (time.Time, error) {
	d, err := time.Parse(DateLayout, localDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", domain.ErrValidation, localDate)
	}
	return c.resolve(d.Year(), d.Month(), d.Day(), 23, 59, 59), nil
}

// LocalDateOf returns the civil date of t as "2006-01-02".
func (c *Codec) LocalDateOf(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// LocalTimeOf returns the civil time of t as "15:04".
func (c *Codec) LocalTimeOf(t time.Time) string {
	return t.In(c.loc).Format(TimeLayout)
}

// DisplayDate formats t for humans, e.g. "30.08.2024".
func (c *Codec) DisplayDate(t time.Time) string {
	return t.In(c.loc).Format(DisplayDateLayout)
}

// DisplayTime formats t for humans, e.g. "08:00".
func (c *Codec) DisplayTime(t time.Time) string {
	return t.In(c.loc).Format(DisplayTimeLayout)
}

// DisplayDateTime formats t for humans, e.g. "30.08.2024 08:00".
func (c *Codec) DisplayDateTime(t time.Time) string {
	return t.In(c.loc).Format(DisplayDateTimeLayout)
}

// CurrentLocalDate returns today's civil date. Only for form defaults.
func (c *Codec) CurrentLocalDate() string {
	return c.LocalDateOf(c.now())
}

// CurrentLocalTime returns the current civil time. Only for form defaults.
func (c *Codec) CurrentLocalTime() string {
	return c.LocalTimeOf(c.now())
}

// resolve maps a wall-clock reading to a UTC instant using the rule
// documented on ToStorageInstant. time.Date leaves the choice unspecified
// around transitions, so the candidates are checked explicitly.
func (c *Codec) resolve(year int, month time.Month, day, hour, min, sec int) time.Time {
	// The wall reading as if it were UTC; real instants are naive - offset.
	naive := time.Date(year, month, day, hour, min, sec, 0, time.UTC)

	_, before := naive.Add(-12 * time.Hour).In(c.loc).Zone()
	_, after := naive.Add(12 * time.Hour).In(c.loc).Zone()

	var valid []time.Time
	for _, off := range []int{before, after} {
		cand := naive.Add(-time.Duration(off) * time.Second)
		if sameWall(cand.In(c.loc), naive) {
			valid = append(valid, cand)
		}
	}

	switch {
	case len(valid) == 0:
		// Gap: read with the pre-transition offset.
		return naive.Add(-time.Duration(before) * time.Second).UTC()
	case len(valid) == 2 && valid[1].Before(valid[0]):
		return valid[1].UTC()
	default:
		return valid[0].UTC()
	}
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
