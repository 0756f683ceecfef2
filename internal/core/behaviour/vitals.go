package behaviour

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/entity"
)

// VitalsID is the name the vitals behaviour is attached under.
const VitalsID ID = "vitals"

// ErrHealthDepleted is the stop reason reported when damage drives an
// entity's health to zero.
var ErrHealthDepleted = errors.New("health depleted")

// Damage reduces the entity's current health.
type Damage struct {
	Amount int `json:"amount"`
}

// Heal restores health up to the entity's maximum.
type Heal struct {
	Amount int `json:"amount"`
}

const defaultMaxHealth = 100

// Vitals tracks hit points. A call that drives health to zero stops the
// actor after the reply is delivered.
type Vitals struct{}

var (
	_ Behaviour   = Vitals{}
	_ CallDecoder = Vitals{}
)

func (Vitals) Init(state entity.State, args any) (entity.State, error) {
	if state.Has(entity.TypeHealth) {
		return state, nil
	}
	if h, ok := args.(entity.Health); ok {
		return state.Put(h), nil
	}
	return state.Put(entity.Health{Current: defaultMaxHealth, Max: defaultMaxHealth}), nil
}

func (Vitals) HandleCall(msg any, state entity.State) (CallResult, error) {
	switch m := msg.(type) {
	case Damage:
		next := state.Update(entity.TypeHealth, func(a entity.Attribute) entity.Attribute {
			h := a.(entity.Health)
			h.Current -= m.Amount
			if h.Current < 0 {
				h.Current = 0
			}
			return h
		})
		h, _ := next.Get(entity.TypeHealth)
		res := CallResult{Value: h, State: next}
		if h.(entity.Health).Current == 0 {
			res.Stop = true
			res.Reason = ErrHealthDepleted
		}
		return res, nil

	case Heal:
		next := state.Update(entity.TypeHealth, func(a entity.Attribute) entity.Attribute {
			h := a.(entity.Health)
			h.Current += m.Amount
			if h.Current > h.Max {
				h.Current = h.Max
			}
			return h
		})
		h, _ := next.Get(entity.TypeHealth)
		return CallResult{Value: h, State: next}, nil

	default:
		return CallResult{}, fmt.Errorf("%w: vitals does not handle %T", ErrUnknownMessage, msg)
	}
}

func (Vitals) HandleEvent(_ any, state entity.State) (EventResult, error) {
	return pass(state)
}

func (Vitals) DecodeCall(raw json.RawMessage) (any, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case "damage":
		var m Damage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "heal":
		var m Heal
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: vitals message kind %q", ErrUnknownMessage, probe.Kind)
	}
}
