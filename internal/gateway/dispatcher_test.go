package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/events/bus"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/world"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *world.World) {
	t.Helper()

	behaviours := behaviour.NewRegistry()
	require.NoError(t, behaviour.RegisterBuiltins(behaviours, bus.New()))

	w := world.New(behaviours, bus.New(), log.Nop(), world.DefaultOptions())
	t.Cleanup(func() { _ = w.Shutdown(context.Background()) })

	return NewDispatcher(w, behaviours, log.Nop()), w
}

func raw(t *testing.T, s string) json.RawMessage {
	t.Helper()
	require.True(t, json.Valid([]byte(s)))
	return json.RawMessage(s)
}

func TestDispatcher_SpawnCallState(t *testing.T) {
	d, w := newTestDispatcher(t)
	ctx := context.Background()

	nick := "hero"
	resp := d.Handle(ctx, Request{
		Op: "spawn",
		ID: "e1",
		Attributes: &AttributeSpec{
			Nick: &nick,
		},
	})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, "e1", resp.ID)
	require.True(t, w.Exists("e1"))

	resp = d.Handle(ctx, Request{Op: "attach", ID: "e1", Behaviour: "mover"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{
		Op:        "call",
		ID:        "e1",
		Behaviour: "mover",
		Message:   raw(t, `{"kind":"move","dx":3,"dy":4}`),
	})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{Op: "state", ID: "e1"})
	require.True(t, resp.OK, resp.Error)
	require.NotNil(t, resp.State)
	require.Equal(t, "e1", resp.State.ID)
	require.Contains(t, resp.State.Attributes, "position")
	require.Contains(t, resp.State.Attributes, "nick")
}

func TestDispatcher_SpawnGeneratesID(t *testing.T) {
	d, w := newTestDispatcher(t)

	resp := d.Handle(context.Background(), Request{Op: "spawn"})
	require.True(t, resp.OK, resp.Error)
	require.NotEmpty(t, resp.ID)
	require.True(t, w.Exists(resp.ID))
}

func TestDispatcher_HasAttachDetach(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Handle(ctx, Request{Op: "spawn", ID: "e1"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{Op: "has", ID: "e1", Behaviour: "vitals"})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, false, resp.Result)

	resp = d.Handle(ctx, Request{Op: "attach", ID: "e1", Behaviour: "vitals"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{Op: "has", ID: "e1", Behaviour: "vitals"})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, true, resp.Result)

	resp = d.Handle(ctx, Request{Op: "detach", ID: "e1", Behaviour: "vitals"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{Op: "has", ID: "e1", Behaviour: "vitals"})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, false, resp.Result)
}

func TestDispatcher_KillAndUnknownID(t *testing.T) {
	d, w := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Handle(ctx, Request{Op: "spawn", ID: "e1"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{Op: "kill", ID: "e1"})
	require.True(t, resp.OK, resp.Error)
	require.False(t, w.Exists("e1"))

	resp = d.Handle(ctx, Request{Op: "kill", ID: "e1"})
	require.False(t, resp.OK)
	require.NotEmpty(t, resp.Error)

	resp = d.Handle(ctx, Request{Op: "state", ID: "ghost"})
	require.False(t, resp.OK)
	require.NotEmpty(t, resp.Error)
}

func TestDispatcher_BroadcastShutdown(t *testing.T) {
	d, w := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Handle(ctx, Request{Op: "spawn", ID: "e1"})
	require.True(t, resp.OK, resp.Error)

	resp = d.Handle(ctx, Request{
		Op:      "broadcast",
		ID:      "e1",
		Message: raw(t, `{"kind":"shutdown","reason":"maintenance"}`),
	})
	require.True(t, resp.OK, resp.Error)

	require.Eventually(t, func() bool { return !w.Exists("e1") }, testWait, testTick)
}

func TestDispatcher_Errors(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Handle(ctx, Request{Op: "spawn", ID: "e1"})
	require.True(t, resp.OK, resp.Error)

	t.Run("unknown op", func(t *testing.T) {
		resp := d.Handle(ctx, Request{Op: "explode"})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "unknown op")
	})

	t.Run("missing id", func(t *testing.T) {
		for _, op := range []string{"kill", "state", "call", "broadcast", "attach", "detach", "has"} {
			resp := d.Handle(ctx, Request{Op: op})
			require.False(t, resp.OK, op)
			require.Contains(t, resp.Error, "entity id", op)
		}
	})

	t.Run("unknown behaviour factory", func(t *testing.T) {
		resp := d.Handle(ctx, Request{Op: "attach", ID: "e1", Behaviour: "warp"})
		require.False(t, resp.OK)
	})

	t.Run("bad call payload", func(t *testing.T) {
		resp := d.Handle(ctx, Request{Op: "attach", ID: "e1", Behaviour: "mover"})
		require.True(t, resp.OK, resp.Error)

		resp = d.Handle(ctx, Request{
			Op:        "call",
			ID:        "e1",
			Behaviour: "mover",
			Message:   raw(t, `{"kind":"fly"}`),
		})
		require.False(t, resp.OK)
	})

	t.Run("unknown event kind", func(t *testing.T) {
		resp := d.Handle(ctx, Request{
			Op:      "broadcast",
			ID:      "e1",
			Message: raw(t, `{"kind":"earthquake"}`),
		})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "unknown event kind")
	})
}
