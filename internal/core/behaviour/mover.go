package behaviour

import (
	"encoding/json"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/entity"
)

// MoverID is the name the mover behaviour is attached under.
const MoverID ID = "mover"

// Move shifts the entity's position by a delta.
type Move struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Teleport places the entity at an absolute position.
type Teleport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mover gives an entity a position and directed movement calls.
type Mover struct{}

var (
	_ Behaviour   = Mover{}
	_ CallDecoder = Mover{}
)

// Init guarantees the entity carries a position.
func (Mover) Init(state entity.State, args any) (entity.State, error) {
	if state.Has(entity.TypePosition) {
		return state, nil
	}
	if pos, ok := args.(entity.Position); ok {
		return state.Put(pos), nil
	}
	return state.Put(entity.Position{}), nil
}

func (Mover) HandleCall(msg any, state entity.State) (CallResult, error) {
	switch m := msg.(type) {
	case Move:
		next := state.Update(entity.TypePosition, func(a entity.Attribute) entity.Attribute {
			pos := a.(entity.Position)
			pos.X += m.DX
			pos.Y += m.DY
			return pos
		})
		pos, _ := next.Get(entity.TypePosition)
		return CallResult{Value: pos, State: next}, nil

	case Teleport:
		next := state.Put(entity.Position{X: m.X, Y: m.Y})
		pos, _ := next.Get(entity.TypePosition)
		return CallResult{Value: pos, State: next}, nil

	default:
		return CallResult{}, fmt.Errorf("%w: mover does not handle %T", ErrUnknownMessage, msg)
	}
}

func (Mover) HandleEvent(_ any, state entity.State) (EventResult, error) {
	return pass(state)
}

func (Mover) DecodeCall(raw json.RawMessage) (any, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case "move":
		var m Move
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "teleport":
		var m Teleport
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: mover message kind %q", ErrUnknownMessage, probe.Kind)
	}
}
