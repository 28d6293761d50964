package changefeed_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-calendar/internal/changefeed"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHub() *changefeed.Hub {
	return changefeed.NewHub(quietLogger())
}

func TestHub_DispatchReachesTableSubscribersOnly(t *testing.T) {
	h := newHub()
	var mu sync.Mutex
	var rides, segments []changefeed.Notification

	_, err := h.Subscribe(changefeed.TableRides, func(n changefeed.Notification) {
		mu.Lock()
		defer mu.Unlock()
		rides = append(rides, n)
	})
	require.NoError(t, err)
	_, err = h.Subscribe(changefeed.TableSegments, func(n changefeed.Notification) {
		mu.Lock()
		defer mu.Unlock()
		segments = append(segments, n)
	})
	require.NoError(t, err)

	for _, op := range []string{"INSERT", "UPDATE", "DELETE"} {
		h.Dispatch(changefeed.Notification{Table: changefeed.TableRides, Op: op, ID: "r1"})
	}
	h.Dispatch(changefeed.Notification{Table: changefeed.TableSegments, Op: "INSERT", ID: "s1"})
	h.Dispatch(changefeed.Notification{Table: "vehicles", Op: "INSERT"})

	assert.Len(t, rides, 3)
	require.Len(t, segments, 1)
	assert.Equal(t, "s1", segments[0].ID)
}

func TestHub_SubscribeUnknownTable(t *testing.T) {
	h := newHub()

	_, err := h.Subscribe("vehicles", func(changefeed.Notification) {})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vehicles")
}

func TestHub_SubscribeNilHandler(t *testing.T) {
	_, err := newHub().Subscribe(changefeed.TableRides, nil)
	require.Error(t, err)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := newHub()
	calls := 0
	id, err := h.Subscribe(changefeed.TableRides, func(changefeed.Notification) { calls++ })
	require.NoError(t, err)
	require.Equal(t, 1, h.Subscribers(changefeed.TableRides))

	h.Unsubscribe(id)
	h.Unsubscribe(id) // second release is a no-op
	h.Dispatch(changefeed.Notification{Table: changefeed.TableRides})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.Subscribers(changefeed.TableRides))
}

func TestHub_CustomTables(t *testing.T) {
	h := changefeed.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), "routes")

	assert.Equal(t, []string{"routes"}, h.Tables())
	_, err := h.Subscribe(changefeed.TableRides, func(changefeed.Notification) {})
	assert.Error(t, err)
}
