package world

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entitykit/entitykit/internal/core/actor"
	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/entity"
	"github.com/entitykit/entitykit/internal/core/events/bus"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/registry"
)

func newWorld(t *testing.T) *World {
	t.Helper()

	behaviours := behaviour.NewRegistry()
	b := bus.New()
	require.NoError(t, behaviour.RegisterBuiltins(behaviours, b))

	w := New(behaviours, b, log.Nop(), DefaultOptions())
	t.Cleanup(func() { _ = w.Shutdown(context.Background()) })
	return w
}

func TestWorld_MoverScenario(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	id, err := w.Spawn(ctx, "e1", nil, "")
	require.NoError(t, err)
	require.Equal(t, "e1", id)
	require.True(t, w.Exists("e1"))

	require.NoError(t, w.AttachBehaviour(ctx, "e1", "mover", nil))

	v, err := w.Call(ctx, "e1", behaviour.MoverID, behaviour.Move{DX: 1, DY: 0})
	require.NoError(t, err)
	require.Equal(t, entity.Position{X: 1, Y: 0}, v)

	state, err := w.State(ctx, "e1")
	require.NoError(t, err)
	pos, ok := state.Get(entity.TypePosition)
	require.True(t, ok)
	require.Equal(t, entity.Position{X: 1, Y: 0}, pos)

	require.NoError(t, w.DetachBehaviour(ctx, "e1", "mover"))
	_, err = w.Call(ctx, "e1", behaviour.MoverID, behaviour.Move{DX: 1, DY: 0})
	require.ErrorIs(t, err, actor.ErrBehaviourNotFound)

	require.NoError(t, w.Kill("e1"))
	require.False(t, w.Exists("e1"))
	_, err = w.State(ctx, "e1")
	require.ErrorIs(t, err, registry.ErrIDNotFound)
}

func TestWorld_SpawnGeneratesIDs(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	id1, err := w.Spawn(ctx, "", nil, "")
	require.NoError(t, err)
	id2, err := w.Spawn(ctx, "", nil, "")
	require.NoError(t, err)

	require.NotEmpty(t, id1)
	require.NotEqual(t, id1, id2)
	require.True(t, w.Exists(id1))
	require.True(t, w.Exists(id2))
	require.Equal(t, 2, w.Len())
}

func TestWorld_SpawnConflict(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	_, err := w.Spawn(ctx, "dup", nil, "")
	require.NoError(t, err)

	_, err = w.Spawn(ctx, "dup", nil, "")
	require.ErrorIs(t, err, registry.ErrIDConflict)

	// the original entity is untouched by the failed spawn
	require.True(t, w.Exists("dup"))
	state, err := w.State(ctx, "dup")
	require.NoError(t, err)
	require.Equal(t, "dup", state.ID)
}

func TestWorld_ConcurrentSpawnRace(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	const racers = 8
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	wg.Add(racers)

	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := w.Spawn(ctx, "contested", nil, "")
			if err != nil {
				conflicts.Add(1)
			} else {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(racers-1), conflicts.Load())
	require.True(t, w.Exists("contested"))
}

func TestWorld_Archetypes(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	w.RegisterArchetype(Archetype{
		Name:       "creature",
		Behaviours: []string{"mover", "vitals"},
		Attributes: []entity.Attribute{
			entity.Position{X: 10, Y: 10},
			entity.Health{Current: 50, Max: 50},
		},
	})

	t.Run("archetype behaviours and attributes applied", func(t *testing.T) {
		id, err := w.Spawn(ctx, "rat", nil, "creature")
		require.NoError(t, err)

		for _, name := range []string{"lifecycle", "mover", "vitals"} {
			ok, err := w.HasBehaviour(ctx, id, name)
			require.NoError(t, err)
			require.True(t, ok, "expected %s attached", name)
		}

		state, err := w.State(ctx, id)
		require.NoError(t, err)
		pos, _ := state.Get(entity.TypePosition)
		require.Equal(t, entity.Position{X: 10, Y: 10}, pos)
	})

	t.Run("explicit attributes win over archetype", func(t *testing.T) {
		id, err := w.Spawn(ctx, "boss", []entity.Attribute{entity.Health{Current: 500, Max: 500}}, "creature")
		require.NoError(t, err)

		state, err := w.State(ctx, id)
		require.NoError(t, err)
		h, _ := state.Get(entity.TypeHealth)
		require.Equal(t, entity.Health{Current: 500, Max: 500}, h)
	})

	t.Run("unknown archetype", func(t *testing.T) {
		_, err := w.Spawn(ctx, "", nil, "dragon")
		require.ErrorIs(t, err, ErrArchetypeNotFound)
		require.False(t, w.Exists("dragon"))
	})
}

func TestWorld_LethalCallRemovesEntity(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	id, err := w.Spawn(ctx, "victim", []entity.Attribute{entity.Health{Current: 5, Max: 5}}, "")
	require.NoError(t, err)
	require.NoError(t, w.AttachBehaviour(ctx, id, "vitals", nil))

	v, err := w.Call(ctx, id, behaviour.VitalsID, behaviour.Damage{Amount: 10})
	require.NoError(t, err)
	require.Equal(t, entity.Health{Current: 0, Max: 5}, v)

	// the actor stops after replying and the registry entry goes with it
	act, err := w.registry.Lookup(id)
	if err == nil {
		<-act.Done()
	}
	require.False(t, w.Exists(id))
}

func TestWorld_ShutdownBroadcast(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	id, err := w.Spawn(ctx, "e1", nil, "")
	require.NoError(t, err)

	// lifecycle answers the shutdown broadcast by stopping the actor
	act, err := w.registry.Lookup(id)
	require.NoError(t, err)
	require.NoError(t, w.Broadcast(id, behaviour.Shutdown{Reason: "test"}))
	<-act.Done()

	require.False(t, w.Exists(id))
	require.ErrorIs(t, w.Broadcast(id, behaviour.Shutdown{}), registry.ErrIDNotFound)
}

func TestWorld_Shutdown(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	for i := 0; i < 5; i++ {
		_, err := w.Spawn(ctx, "", nil, "")
		require.NoError(t, err)
	}
	require.Equal(t, 5, w.Len())

	require.NoError(t, w.Shutdown(ctx))
	require.Equal(t, 0, w.Len())
}

func TestWorld_KillUnknown(t *testing.T) {
	w := newWorld(t)
	require.ErrorIs(t, w.Kill("ghost"), registry.ErrIDNotFound)
}
