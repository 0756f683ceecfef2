package behaviour

import (
	"encoding/json"
	"fmt"

	"github.com/entitykit/entitykit/internal/core/entity"
	"github.com/entitykit/entitykit/internal/core/events/bus"
)

// RadioID is the name the radio behaviour is attached under.
const RadioID ID = "radio"

// TypeTuned stores the set of topics an entity listens on.
const TypeTuned entity.AttributeType = "radio.tuned"

// Tuned is the attribute holding an entity's tuned topics.
type Tuned struct {
	Topics []string `json:"topics"`
}

func (Tuned) AttributeType() entity.AttributeType { return TypeTuned }

// Tune adds a topic to the entity's tuned set.
type Tune struct {
	Topic string `json:"topic"`
}

// Say publishes a line of text on a topic.
type Say struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// Transmission is the payload Radio publishes on the bus.
type Transmission struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Radio is the pub/sub capability: Say publishes on the shared event bus,
// Tune records the topics this entity cares about in its own state. The bus
// is a constructor dependency, not behaviour state.
type Radio struct {
	bus *bus.Bus
}

var (
	_ Behaviour   = (*Radio)(nil)
	_ CallDecoder = (*Radio)(nil)
)

func NewRadio(b *bus.Bus) *Radio {
	return &Radio{bus: b}
}

func (r *Radio) Init(state entity.State, _ any) (entity.State, error) {
	if state.Has(TypeTuned) {
		return state, nil
	}
	return state.Put(Tuned{}), nil
}

func (r *Radio) HandleCall(msg any, state entity.State) (CallResult, error) {
	switch m := msg.(type) {
	case Tune:
		next := state.Update(TypeTuned, func(a entity.Attribute) entity.Attribute {
			tuned := a.(Tuned)
			for _, t := range tuned.Topics {
				if t == m.Topic {
					return tuned
				}
			}
			topics := make([]string, len(tuned.Topics), len(tuned.Topics)+1)
			copy(topics, tuned.Topics)
			return Tuned{Topics: append(topics, m.Topic)}
		})
		tuned, _ := next.Get(TypeTuned)
		return CallResult{Value: tuned, State: next}, nil

	case Say:
		reached := r.bus.Publish(m.Topic, state.ID, Transmission{From: state.ID, Text: m.Text})
		return CallResult{Value: reached, State: state}, nil

	default:
		return CallResult{}, fmt.Errorf("%w: radio does not handle %T", ErrUnknownMessage, msg)
	}
}

func (r *Radio) HandleEvent(_ any, state entity.State) (EventResult, error) {
	return pass(state)
}

func (r *Radio) DecodeCall(raw json.RawMessage) (any, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case "tune":
		var m Tune
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "say":
		var m Say
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: radio message kind %q", ErrUnknownMessage, probe.Kind)
	}
}
