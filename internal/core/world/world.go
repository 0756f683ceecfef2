package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/entitykit/entitykit/internal/core/actor"
	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/entity"
	"github.com/entitykit/entitykit/internal/core/events/bus"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/registry"
)

// ErrArchetypeNotFound is returned by Spawn for an unknown archetype name.
var ErrArchetypeNotFound = errors.New("archetype not found")

const defaultCallTimeout = 5 * time.Second

// Options tune the world.
type Options struct {
	// MailboxSize is applied to every spawned actor.
	MailboxSize int
	// CallTimeout bounds Call when the caller's context has no deadline.
	CallTimeout time.Duration
	// RegistryShards sizes the id registry.
	RegistryShards int
}

func DefaultOptions() Options {
	return Options{
		MailboxSize: 64,
		CallTimeout: defaultCallTimeout,
	}
}

// Archetype is a named recipe: the behaviours and initial attributes an
// entity is born with.
type Archetype struct {
	Name       string
	Behaviours []string
	Attributes []entity.Attribute
}

// World is the identity-based facade over the registry and the actor
// kernel. Every id-based operation resolves through the registry first and
// reports failures as plain error values; nothing panics across this
// boundary.
type World struct {
	registry   *registry.Registry
	behaviours *behaviour.Registry
	bus        *bus.Bus
	log        log.Log
	opts       Options

	mu         sync.RWMutex
	archetypes map[string]Archetype
}

// New builds a world. The behaviour registry decides what AttachBehaviour
// and archetypes can attach by name.
func New(behaviours *behaviour.Registry, b *bus.Bus, logger log.Log, opts Options) *World {
	if logger == nil {
		logger = log.Provide()
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultOptions().MailboxSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &World{
		registry:   registry.New(opts.RegistryShards),
		behaviours: behaviours,
		bus:        b,
		log:        logger,
		opts:       opts,
		archetypes: make(map[string]Archetype),
	}
}

// Bus exposes the shared event bus for collaborators such as gateways.
func (w *World) Bus() *bus.Bus { return w.bus }

// RegisterArchetype makes an archetype spawnable by name. Re-registering a
// name replaces the recipe.
func (w *World) RegisterArchetype(a Archetype) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.archetypes[a.Name] = a
}

// Spawn creates a new entity and registers it before returning its id. An
// empty id asks for a generated one. The lifecycle behaviour is attached to
// every entity; an archetype adds its behaviours and initial attributes,
// with explicitly passed attributes taking precedence.
//
// Two Spawn calls racing on the same id resolve to exactly one winner; the
// loser's actor is torn down and the conflict reported.
func (w *World) Spawn(ctx context.Context, id string, attrs []entity.Attribute, archetypeName string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	var arch Archetype
	if archetypeName != "" {
		w.mu.RLock()
		a, ok := w.archetypes[archetypeName]
		w.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrArchetypeNotFound, archetypeName)
		}
		arch = a
	}

	state := entity.NewState(id, arch.Attributes...)
	for _, a := range attrs {
		state = state.Put(a)
	}

	var act *actor.Actor
	act = actor.New(state, actor.Options{
		MailboxSize: w.opts.MailboxSize,
		Logger:      w.log,
		OnStop: func(id string) {
			w.registry.Deregister(id, act)
		},
	})

	if err := w.registry.Register(id, act); err != nil {
		act.Stop()
		return "", err
	}

	names := append([]string{string(behaviour.LifecycleID)}, arch.Behaviours...)
	for _, name := range names {
		if err := w.attach(ctx, act, name, nil); err != nil {
			act.Stop()
			return "", fmt.Errorf("spawn %s: %w", id, err)
		}
	}

	w.log.Debug("entity spawned",
		log.String("entity_id", id),
		log.String("archetype", archetypeName))
	return id, nil
}

// Kill terminates the entity unconditionally. The registry entry is gone by
// the time Kill returns.
func (w *World) Kill(id string) error {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return err
	}
	act.Stop()
	w.log.Debug("entity killed", log.String("entity_id", id))
	return nil
}

// State returns a snapshot of the entity's current state.
func (w *World) State(ctx context.Context, id string) (entity.State, error) {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return entity.State{}, err
	}
	ctx, cancel := w.callCtx(ctx)
	defer cancel()
	return act.Inspect(ctx)
}

// Call routes a message to the named behaviour of the entity and waits for
// the reply.
func (w *World) Call(ctx context.Context, id string, behaviourID behaviour.ID, msg any) (any, error) {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := w.callCtx(ctx)
	defer cancel()
	return act.Call(ctx, behaviourID, msg)
}

// Broadcast delivers an event to every behaviour attached to the entity.
func (w *World) Broadcast(id string, event any) error {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return err
	}
	return act.Broadcast(event)
}

// AttachBehaviour builds the named behaviour from the factory registry and
// attaches it to the entity.
func (w *World) AttachBehaviour(ctx context.Context, id, name string, args any) error {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return err
	}
	return w.attach(ctx, act, name, args)
}

// DetachBehaviour removes the named behaviour from the entity. Detaching an
// absent behaviour succeeds.
func (w *World) DetachBehaviour(ctx context.Context, id, name string) error {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return err
	}
	ctx, cancel := w.callCtx(ctx)
	defer cancel()
	return act.Detach(ctx, behaviour.ID(name))
}

// HasBehaviour reports whether the named behaviour is attached.
func (w *World) HasBehaviour(ctx context.Context, id, name string) (bool, error) {
	act, err := w.registry.Lookup(id)
	if err != nil {
		return false, err
	}
	ctx, cancel := w.callCtx(ctx)
	defer cancel()
	return act.Has(ctx, behaviour.ID(name))
}

func (w *World) attach(ctx context.Context, act *actor.Actor, name string, args any) error {
	b, err := w.behaviours.New(name)
	if err != nil {
		return err
	}
	ctx, cancel := w.callCtx(ctx)
	defer cancel()
	return act.Attach(ctx, behaviour.ID(name), b, args)
}

// Exists reports whether the id resolves to a live entity.
func (w *World) Exists(id string) bool {
	return w.registry.Exists(id)
}

// Len counts live entities.
func (w *World) Len() int {
	return w.registry.Len()
}

// Shutdown stops every live entity, waiting for each to terminate, bounded
// by the context.
func (w *World) Shutdown(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)

	w.registry.ForEach(func(id string, act *actor.Actor) bool {
		g.Go(func() error {
			act.Stop()
			return nil
		})
		return true
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		w.log.Info("world shut down", log.Int("remaining", w.registry.Len()))
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callCtx applies the world's default timeout when the caller did not bring
// a deadline of their own.
func (w *World) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, w.opts.CallTimeout)
}
