package actor

import (
	"context"
	"sync"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/entity"
	"github.com/entitykit/entitykit/internal/core/observability/log"
)

const defaultMailboxSize = 64

// Options tune a single actor.
type Options struct {
	// MailboxSize is the capacity of the inbound message queue.
	MailboxSize int
	// Logger receives the actor's lifecycle and failure logs.
	Logger log.Log
	// OnStop runs exactly once when the actor terminates, before pending
	// callers are released. The world uses it to drop the registry entry.
	OnStop func(id string)
}

func DefaultOptions() Options {
	return Options{MailboxSize: defaultMailboxSize}
}

type opKind uint8

const (
	opCall opKind = iota
	opEvent
	opAttach
	opDetach
	opHas
	opInspect
)

type envelope struct {
	kind      opKind
	behaviour behaviour.ID
	impl      behaviour.Behaviour // attach only
	payload   any                 // call message, event, or attach args
	reply     chan response       // nil for events
}

type response struct {
	value any
	err   error
}

// Actor is the sequential processor owning one entity State and the set of
// behaviours attached to it. Every operation goes through the mailbox and is
// executed by the single run goroutine, one at a time, in arrival order, so
// handlers see the most recently installed state and never race.
//
// A behaviour handler must not call back into its own actor; that would
// block the run goroutine on itself. Calls into other actors are fine.
type Actor struct {
	id      string
	mailbox chan envelope
	quit    chan struct{} // closed by Stop to ask the loop to exit
	done    chan struct{} // closed when the loop has exited

	stopOnce sync.Once
	onStop   func(id string)
	log      log.Log

	// owned by the run goroutine
	state      entity.State
	behaviours map[behaviour.ID]behaviour.Behaviour
	order      []behaviour.ID
}

// New starts an actor around the given initial state with an empty
// behaviour set and returns its live handle immediately.
func New(state entity.State, opts Options) *Actor {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Provide()
	}

	a := &Actor{
		id:         state.ID,
		mailbox:    make(chan envelope, opts.MailboxSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		onStop:     opts.OnStop,
		log:        opts.Logger.With(log.String("entity_id", state.ID)),
		state:      state,
		behaviours: make(map[behaviour.ID]behaviour.Behaviour),
	}

	go a.run()
	return a
}

// ID returns the entity id this actor owns.
func (a *Actor) ID() string { return a.id }

// Done is closed once the actor has fully terminated.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Call routes a message to the behaviour attached under id and blocks until
// the reply, the context deadline, or actor termination.
func (a *Actor) Call(ctx context.Context, id behaviour.ID, msg any) (any, error) {
	return a.ask(ctx, envelope{kind: opCall, behaviour: id, payload: msg})
}

// Broadcast enqueues an event for every attached behaviour. It does not
// wait for processing; per-actor ordering is still guaranteed because the
// event goes through the same mailbox as everything else.
func (a *Actor) Broadcast(event any) error {
	select {
	case a.mailbox <- envelope{kind: opEvent, payload: event}:
		return nil
	case <-a.done:
		return ErrActorDown
	}
}

// Attach registers a behaviour under id after running its initializer
// against the current state. Duplicate ids are rejected.
func (a *Actor) Attach(ctx context.Context, id behaviour.ID, b behaviour.Behaviour, args any) error {
	_, err := a.ask(ctx, envelope{kind: opAttach, behaviour: id, impl: b, payload: args})
	return err
}

// Detach removes the behaviour registered under id. Detaching an absent
// behaviour is a no-op success.
func (a *Actor) Detach(ctx context.Context, id behaviour.ID) error {
	_, err := a.ask(ctx, envelope{kind: opDetach, behaviour: id})
	return err
}

// Has reports whether a behaviour is attached under id.
func (a *Actor) Has(ctx context.Context, id behaviour.ID) (bool, error) {
	v, err := a.ask(ctx, envelope{kind: opHas, behaviour: id})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Inspect returns a snapshot of the current entity state, serialized behind
// the same single-writer discipline as every mutation.
func (a *Actor) Inspect(ctx context.Context) (entity.State, error) {
	v, err := a.ask(ctx, envelope{kind: opInspect})
	if err != nil {
		return entity.State{}, err
	}
	return v.(entity.State), nil
}

// Stop terminates the actor and waits until it is fully down. Messages
// still queued are answered with ErrActorDown, not executed. Stopping an
// already terminated actor is a no-op.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.quit) })
	<-a.done
}

func (a *Actor) ask(ctx context.Context, env envelope) (any, error) {
	env.reply = make(chan response, 1)

	select {
	case a.mailbox <- env:
	case <-a.done:
		return nil, ErrActorDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-env.reply:
		return r.value, r.err
	case <-a.done:
		// The loop may have replied and terminated in the same breath;
		// prefer the reply when it is already there.
		select {
		case r := <-env.reply:
			return r.value, r.err
		default:
			return nil, ErrActorDown
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Actor) run() {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("behaviour panicked, terminating actor", log.Any("panic", r))
		}
		a.terminate()
	}()

	for {
		select {
		case <-a.quit:
			return
		case env := <-a.mailbox:
			if stop := a.process(env); stop {
				return
			}
		}
	}
}

// terminate runs the stop hook and releases every caller still queued.
func (a *Actor) terminate() {
	if a.onStop != nil {
		a.onStop(a.id)
	}
	for {
		select {
		case env := <-a.mailbox:
			if env.reply != nil {
				env.reply <- response{err: ErrActorDown}
			}
		default:
			a.log.Debug("actor terminated")
			return
		}
	}
}

// process executes one envelope. The returned flag asks the loop to stop.
func (a *Actor) process(env envelope) bool {
	switch env.kind {
	case opCall:
		return a.handleCall(env)

	case opEvent:
		return a.handleEvent(env.payload)

	case opAttach:
		if _, ok := a.behaviours[env.behaviour]; ok {
			env.reply <- response{err: ErrBehaviourAttached}
			return false
		}
		next, err := env.impl.Init(a.state, env.payload)
		if err != nil {
			env.reply <- response{err: err}
			return false
		}
		a.state = next
		a.behaviours[env.behaviour] = env.impl
		a.order = append(a.order, env.behaviour)
		env.reply <- response{}
		return false

	case opDetach:
		if _, ok := a.behaviours[env.behaviour]; ok {
			delete(a.behaviours, env.behaviour)
			for i, id := range a.order {
				if id == env.behaviour {
					a.order = append(a.order[:i], a.order[i+1:]...)
					break
				}
			}
		}
		env.reply <- response{}
		return false

	case opHas:
		_, ok := a.behaviours[env.behaviour]
		env.reply <- response{value: ok}
		return false

	case opInspect:
		env.reply <- response{value: a.state.Snapshot()}
		return false

	default:
		env.reply <- response{err: ErrBehaviourNotFound}
		return false
	}
}

func (a *Actor) handleCall(env envelope) bool {
	b, ok := a.behaviours[env.behaviour]
	if !ok {
		env.reply <- response{err: ErrBehaviourNotFound}
		return false
	}

	res, err := b.HandleCall(env.payload, a.state)
	if err != nil {
		// state unchanged on handler error
		env.reply <- response{err: err}
		return false
	}

	a.state = res.State
	env.reply <- response{value: res.Value}

	if res.Stop {
		a.log.Info("call handler requested stop",
			log.String("behaviour", string(env.behaviour)),
			log.Error(res.Reason))
		return true
	}
	return false
}

func (a *Actor) handleEvent(event any) bool {
	// The state returned by one handler feeds the next, in attach order.
	for _, id := range a.order {
		b := a.behaviours[id]
		res, err := b.HandleEvent(event, a.state)
		if err != nil {
			a.log.Warn("event handler failed",
				log.String("behaviour", string(id)),
				log.Error(err))
			continue
		}
		a.state = res.State
		if res.Stop {
			a.log.Info("event handler requested stop",
				log.String("behaviour", string(id)),
				log.Error(res.Reason))
			return true
		}
	}
	return false
}
