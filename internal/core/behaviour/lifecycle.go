package behaviour

import (
	"encoding/json"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/entity"
)

// LifecycleID is the name the lifecycle behaviour is attached under. The
// world attaches it to every entity it spawns.
const LifecycleID ID = "lifecycle"

// Status asks the lifecycle behaviour for a summary of the entity.
type Status struct{}

// StatusReport is the reply to a Status call.
type StatusReport struct {
	ID         string   `json:"id"`
	Attributes []string `json:"attributes"`
}

// Lifecycle answers the Shutdown broadcast by stopping the actor, so a
// single broadcast reaches every attached behaviour before the entity goes
// away.
type Lifecycle struct{}

var (
	_ Behaviour   = Lifecycle{}
	_ CallDecoder = Lifecycle{}
)

func (Lifecycle) Init(state entity.State, _ any) (entity.State, error) {
	return state, nil
}

func (Lifecycle) HandleCall(msg any, state entity.State) (CallResult, error) {
	switch msg.(type) {
	case Status:
		report := StatusReport{ID: state.ID}
		for t := range state.Attributes {
			report.Attributes = append(report.Attributes, string(t))
		}
		return CallResult{Value: report, State: state}, nil
	default:
		return CallResult{}, fmt.Errorf("%w: lifecycle does not handle %T", ErrUnknownMessage, msg)
	}
}

func (Lifecycle) HandleEvent(event any, state entity.State) (EventResult, error) {
	if sd, ok := event.(Shutdown); ok {
		return EventResult{State: state, Stop: true, Reason: fmt.Errorf("shutdown: %s", sd.Reason)}, nil
	}
	return pass(state)
}

func (Lifecycle) DecodeCall(raw json.RawMessage) (any, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Kind == "status" {
		return Status{}, nil
	}
	return nil, fmt.Errorf("%w: lifecycle message kind %q", ErrUnknownMessage, probe.Kind)
}
