package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/world"
)

var errMissingID = errors.New("request needs an entity id")

// Dispatcher turns wire requests into world operations. Both transports
// funnel into the same instance, so the command surface stays identical
// regardless of how a client connects.
type Dispatcher struct {
	world      *world.World
	behaviours *behaviour.Registry
	log        log.Log
}

func NewDispatcher(w *world.World, behaviours *behaviour.Registry, logger log.Log) *Dispatcher {
	if logger == nil {
		logger = log.Provide()
	}
	return &Dispatcher{world: w, behaviours: behaviours, log: logger}
}

// Handle executes one request. Every failure comes back as a Response with
// the error string set; the connection stays usable.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	switch req.Op {
	case "spawn":
		id, err := d.world.Spawn(ctx, req.ID, req.Attributes.attributes(), req.Archetype)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: id}

	case "kill":
		if req.ID == "" {
			return fail(errMissingID)
		}
		if err := d.world.Kill(req.ID); err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID}

	case "state":
		if req.ID == "" {
			return fail(errMissingID)
		}
		state, err := d.world.State(ctx, req.ID)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID, State: viewOf(state)}

	case "call":
		return d.handleCall(ctx, req)

	case "broadcast":
		if req.ID == "" {
			return fail(errMissingID)
		}
		event, err := decodeEvent(req.Message)
		if err != nil {
			return fail(err)
		}
		if err := d.world.Broadcast(req.ID, event); err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID}

	case "attach":
		if req.ID == "" {
			return fail(errMissingID)
		}
		if err := d.world.AttachBehaviour(ctx, req.ID, req.Behaviour, nil); err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID}

	case "detach":
		if req.ID == "" {
			return fail(errMissingID)
		}
		if err := d.world.DetachBehaviour(ctx, req.ID, req.Behaviour); err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID}

	case "has":
		if req.ID == "" {
			return fail(errMissingID)
		}
		ok, err := d.world.HasBehaviour(ctx, req.ID, req.Behaviour)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, ID: req.ID, Result: ok}

	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
}

func (d *Dispatcher) handleCall(ctx context.Context, req Request) Response {
	if req.ID == "" {
		return fail(errMissingID)
	}

	// A throwaway instance decodes the payload; behaviours opt into wire
	// calls by implementing CallDecoder.
	proto, err := d.behaviours.New(req.Behaviour)
	if err != nil {
		return fail(err)
	}
	decoder, ok := proto.(behaviour.CallDecoder)
	if !ok {
		return fail(fmt.Errorf("behaviour %q does not accept wire calls", req.Behaviour))
	}
	msg, err := decoder.DecodeCall(req.Message)
	if err != nil {
		return fail(err)
	}

	value, err := d.world.Call(ctx, req.ID, behaviour.ID(req.Behaviour), msg)
	if err != nil {
		return fail(err)
	}
	return Response{OK: true, ID: req.ID, Result: value}
}
