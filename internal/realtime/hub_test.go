package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowEvent(t *testing.T, table string, typ ChangeType, newRow, oldRow map[string]any) ChangeEvent {
	t.Helper()
	ev := ChangeEvent{Table: table, Type: typ}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		require.NoError(t, err)
		ev.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		require.NoError(t, err)
		ev.Old = b
	}
	return ev
}

func receive(t *testing.T, sub *Subscription) (ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(time.Second):
		return ChangeEvent{}, false
	}
}

func TestHub_RoutesByTableTypeAndFilter(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()

	mine := hub.Subscribe("notifications", []ChangeType{Insert}, Filter{"user_id": "u-1"})
	all := hub.Subscribe("notifications", nil, nil)
	budgets := hub.Subscribe("budgets", nil, nil)

	hub.Publish(rowEvent(t, "notifications", Insert, map[string]any{"id": "n-1", "user_id": "u-2"}, nil))
	hub.Publish(rowEvent(t, "notifications", Update, map[string]any{"id": "n-2", "user_id": "u-1"}, nil))
	hub.Publish(rowEvent(t, "notifications", Insert, map[string]any{"id": "n-3", "user_id": "u-1"}, nil))

	ev, ok := receive(t, mine)
	require.True(t, ok)
	var row struct {
		ID string `json:"id"`
	}
	require.NoError(t, ev.Decode(&row))
	assert.Equal(t, "n-3", row.ID)

	assert.Len(t, all.Events(), 3)
	assert.Len(t, budgets.Events(), 0)
}

func TestHub_DeleteMatchesOldImage(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	sub := hub.Subscribe("family_members", []ChangeType{Delete}, Filter{"family_id": "f-1"})
	hub.Publish(rowEvent(t, "family_members", Delete, nil, map[string]any{"family_id": "f-1", "user_id": "u-9"}))

	ev, ok := receive(t, sub)
	require.True(t, ok)
	assert.Error(t, ev.Decode(&struct{}{}))
	var old struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, ev.DecodeOld(&old))
	assert.Equal(t, "u-9", old.UserID)
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	sub := hub.Subscribe("budgets", nil, nil)
	for i := 0; i < 5; i++ {
		hub.Publish(rowEvent(t, "budgets", Update, map[string]any{"n": i}, nil))
	}
	assert.Len(t, sub.Events(), 1)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("goals", nil, nil)
	assert.Equal(t, 1, hub.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	hub.Publish(rowEvent(t, "goals", Update, map[string]any{"id": "g"}, nil))
	hub.Close()
	sub.Close()
}

func TestSubscription_RunStopsOnClose(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("transactions", nil, nil)

	got := make(chan ChangeEvent, 4)
	finished := make(chan struct{})
	go func() {
		sub.Run(context.Background(), func(_ context.Context, ev ChangeEvent) { got <- ev })
		close(finished)
	}()

	hub.Publish(rowEvent(t, "transactions", Insert, map[string]any{"id": "t-1"}, nil))
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	sub.Close()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestListener_Dispatch(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()
	sub := hub.Subscribe("budgets", nil, nil)
	l := NewListener("", "table_changes", hub)

	l.Dispatch(`not json`)
	l.Dispatch(`{"table":"","type":"INSERT"}`)
	l.Dispatch(`{"table":"budgets","type":"UPDATE","new":{"id":"b-1","spent":850.5},"old":{"id":"b-1","spent":700}}`)

	ev, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, Update, ev.Type)
	assert.Len(t, sub.Events(), 0)
}
