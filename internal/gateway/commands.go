package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/entity"
)

// Request is one client command, carried as a JSON object over either
// transport.
type Request struct {
	Op        string          `json:"op"`
	ID        string          `json:"id,omitempty"`
	Archetype string          `json:"archetype,omitempty"`
	Behaviour string          `json:"behaviour,omitempty"`
	// Message is the behaviour call or broadcast event payload; its inner
	// shape belongs to the target behaviour, not to the gateway.
	Message    json.RawMessage `json:"message,omitempty"`
	Attributes *AttributeSpec  `json:"attributes,omitempty"`
}

// AttributeSpec covers the attribute types a client may set at spawn time.
type AttributeSpec struct {
	Position *entity.Position `json:"position,omitempty"`
	Health   *entity.Health   `json:"health,omitempty"`
	Nick     *string          `json:"nick,omitempty"`
}

func (s *AttributeSpec) attributes() []entity.Attribute {
	if s == nil {
		return nil
	}
	var out []entity.Attribute
	if s.Position != nil {
		out = append(out, *s.Position)
	}
	if s.Health != nil {
		out = append(out, *s.Health)
	}
	if s.Nick != nil {
		out = append(out, entity.Nick{Value: *s.Nick})
	}
	return out
}

// Response answers one Request.
type Response struct {
	OK     bool       `json:"ok"`
	Error  string     `json:"error,omitempty"`
	ID     string     `json:"id,omitempty"`
	Result any        `json:"result,omitempty"`
	State  *StateView `json:"state,omitempty"`
}

// StateView is the wire rendering of an entity state snapshot.
type StateView struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

func viewOf(state entity.State) *StateView {
	attrs := make(map[string]any, len(state.Attributes))
	for t, a := range state.Attributes {
		attrs[string(t)] = a
	}
	return &StateView{ID: state.ID, Attributes: attrs}
}

func fail(err error) Response {
	return Response{Error: err.Error()}
}

// decodeEvent maps a broadcast payload to its typed event. Only events the
// runtime itself defines can cross the gateway.
func decodeEvent(raw json.RawMessage) (any, error) {
	var probe struct {
		Kind   string `json:"kind"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case "shutdown":
		return behaviour.Shutdown{Reason: probe.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
}
