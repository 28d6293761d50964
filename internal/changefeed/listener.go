package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelFor returns the Postgres NOTIFY channel the migrations use for table.
func ChannelFor(table string) string {
	return table + "_changes"
}

// Listener holds one dedicated pool connection, LISTENs on the channel of
// every table the hub watches, and dispatches each notification.
type Listener struct {
	pool    *pgxpool.Pool
	hub     *Hub
	log     *slog.Logger
	backoff time.Duration
	maxWait time.Duration
}

// NewListener constructs a Listener. Call Run to start it.
func NewListener(pool *pgxpool.Pool, hub *Hub, log *slog.Logger) *Listener {
	return &Listener{
		pool:    pool,
		hub:     hub,
		log:     log,
		backoff: 500 * time.Millisecond,
		maxWait: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled. A lost connection is re-acquired with
// exponential backoff; after every reconnect a synthetic notification is
// dispatched per table so subscribers refetch whatever they missed. The
// backoff starts over once a connection gets its LISTENs in place.
func (l *Listener) Run(ctx context.Context) error {
	delay := retryDelay{base: l.backoff, max: l.maxWait}
	first := true
	for {
		err := l.listen(ctx, !first, delay.reset)
		if ctx.Err() != nil {
			return nil
		}
		first = false
		wait := delay.next()
		l.log.Error("changefeed: listener disconnected", "error", err, "retry_in", wait.String())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// retryDelay doubles from base up to max on every next call.
type retryDelay struct {
	base, max time.Duration
	cur       time.Duration
}

func (d *retryDelay) next() time.Duration {
	if d.cur == 0 {
		d.cur = d.base
	} else {
		d.cur = min(d.cur*2, d.max)
	}
	return d.cur
}

func (d *retryDelay) reset() { d.cur = 0 }

// listen runs one connection's lifetime. ready is called once every LISTEN
// has succeeded.
func (l *Listener) listen(ctx context.Context, resync bool, ready func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("changefeed.Listener: acquire: %w", err)
	}
	// The connection carries LISTEN state, so it is never returned to the pool.
	pc := conn.Hijack()
	defer pc.Close(context.Background())

	tables := l.hub.Tables()
	for _, t := range tables {
		if _, err := pc.Exec(ctx, "LISTEN "+pgx.Identifier{ChannelFor(t)}.Sanitize()); err != nil {
			return fmt.Errorf("changefeed.Listener: listen %s: %w", t, err)
		}
	}
	l.log.Info("changefeed: listening", "tables", tables)
	ready()

	if resync {
		for _, t := range tables {
			l.hub.Dispatch(Notification{Table: t, Op: "RESYNC"})
		}
	}

	for {
		n, err := pc.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("changefeed.Listener: wait: %w", err)
		}
		note, err := decode(n.Channel, n.Payload)
		if err != nil {
			l.log.Warn("changefeed: malformed payload", "channel", n.Channel, "error", err)
			continue
		}
		l.hub.Dispatch(note)
	}
}

// decode parses the trigger payload. An empty payload still yields a
// notification for the channel's table.
func decode(channel, payload string) (Notification, error) {
	var n Notification
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return Notification{}, err
		}
	}
	if n.Table == "" {
		table, ok := tableOf(channel)
		if !ok {
			return Notification{}, errors.New("unknown channel " + channel)
		}
		n.Table = table
	}
	return n, nil
}

func tableOf(channel string) (string, bool) {
	const suffix = "_changes"
	if len(channel) <= len(suffix) || channel[len(channel)-len(suffix):] != suffix {
		return "", false
	}
	return channel[:len(channel)-len(suffix)], true
}
