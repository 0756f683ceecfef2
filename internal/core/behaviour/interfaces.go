package behaviour

import (
	"encoding/json"
	"errors"

	"github.com/entitykit/entitykit/internal/core/entity"
)

var (
	// ErrUnknownMessage is returned by a behaviour's call handler when it
	// does not recognise the message shape.
	ErrUnknownMessage = errors.New("unknown message for behaviour")

	// ErrFactoryRegistered is returned when a behaviour name is registered twice.
	ErrFactoryRegistered = errors.New("behaviour factory already registered")

	// ErrFactoryNotFound is returned when no factory exists for a name.
	ErrFactoryNotFound = errors.New("behaviour factory not found")
)

// ID names a behaviour within one actor. Calls are dispatched by this name,
// never by message shape, so two behaviours may accept identically shaped
// messages without collision.
type ID string

// CallResult is what a call handler hands back: the value for the caller,
// the next entity state, and optionally an instruction to stop the actor
// after the reply is delivered.
type CallResult struct {
	Value  any
	State  entity.State
	Stop   bool
	Reason error
}

// EventResult is what an event handler hands back. Stop terminates the actor
// without running the remaining handlers.
type EventResult struct {
	State  entity.State
	Stop   bool
	Reason error
}

// Behaviour is a named, attachable unit of logic over the shared entity
// state. Implementations hold no mutable state of their own; everything
// lives in the State threaded through each invocation, and the next State
// is always returned explicitly for the kernel to install.
type Behaviour interface {
	// Init transforms the entity state when the behaviour is attached.
	Init(state entity.State, args any) (entity.State, error)

	// HandleCall processes a directed request. Returning an error leaves
	// the entity state unchanged and reports the error to the caller.
	HandleCall(msg any, state entity.State) (CallResult, error)

	// HandleEvent processes a broadcast event. There is no reply channel.
	HandleEvent(event any, state entity.State) (EventResult, error)
}

// CallDecoder is implemented by behaviours that accept calls from the
// gateway. It maps a raw JSON payload to the behaviour's typed message.
type CallDecoder interface {
	DecodeCall(raw json.RawMessage) (any, error)
}

// Shutdown is the broadcast event asking every attached behaviour to wind
// down. The lifecycle behaviour answers it by stopping the actor.
type Shutdown struct {
	Reason string
}

// pass is the common "nothing to do" event outcome.
func pass(state entity.State) (EventResult, error) {
	return EventResult{State: state}, nil
}
