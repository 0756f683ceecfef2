package entity

import (
	"errors"
	"fmt"
)

// ErrAttributeNotFound is returned by Fetch when no value is stored under
// the requested attribute type.
var ErrAttributeNotFound = errors.New("attribute not found")

// AttributeType tags the shape of an attribute value. At most one value per
// tag may exist in a State at a time.
type AttributeType string

// Attribute is a typed value stored inside a State under its type tag.
type Attribute interface {
	AttributeType() AttributeType
}

// Attributes maps attribute type tags to their values.
type Attributes map[AttributeType]Attribute

// State is the single piece of entity state shared by every behaviour
// attached to an actor. The ID never changes for the lifetime of the actor.
//
// All operations are value transformations: they return a new State and
// never mutate the receiver's attribute map, so a handler can be given the
// current State and hand back the next one without any locking.
type State struct {
	ID         string
	Attributes Attributes
}

// NewState builds a State with the given id and initial attributes. Later
// attributes overwrite earlier ones of the same type.
func NewState(id string, attrs ...Attribute) State {
	m := make(Attributes, len(attrs))
	for _, a := range attrs {
		m[a.AttributeType()] = a
	}
	return State{ID: id, Attributes: m}
}

// Has reports whether a value is stored under the given type.
func (s State) Has(t AttributeType) bool {
	_, ok := s.Attributes[t]
	return ok
}

// Get returns the value stored under the given type, if any.
func (s State) Get(t AttributeType) (Attribute, bool) {
	a, ok := s.Attributes[t]
	return a, ok
}

// Fetch returns the value stored under the given type or fails with
// ErrAttributeNotFound.
func (s State) Fetch(t AttributeType) (Attribute, error) {
	a, ok := s.Attributes[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, t)
	}
	return a, nil
}

// Take returns the sub-mapping restricted to the given types. Missing types
// are simply absent from the result, not an error.
func (s State) Take(types ...AttributeType) Attributes {
	out := make(Attributes, len(types))
	for _, t := range types {
		if a, ok := s.Attributes[t]; ok {
			out[t] = a
		}
	}
	return out
}

// Put returns a State with the attribute set under its own type tag,
// overwriting any existing value of the same type.
func (s State) Put(a Attribute) State {
	next := s.cloneAttributes(1)
	next[a.AttributeType()] = a
	return State{ID: s.ID, Attributes: next}
}

// Update returns a State with the value under t replaced by fn(old). When t
// is absent the State is returned unchanged; Update never fabricates a key.
func (s State) Update(t AttributeType, fn func(Attribute) Attribute) State {
	old, ok := s.Attributes[t]
	if !ok {
		return s
	}
	next := s.cloneAttributes(0)
	next[t] = fn(old)
	return State{ID: s.ID, Attributes: next}
}

// Remove returns a State with the value under t deleted. Removing an absent
// type is a no-op.
func (s State) Remove(t AttributeType) State {
	if _, ok := s.Attributes[t]; !ok {
		return s
	}
	next := s.cloneAttributes(0)
	delete(next, t)
	return State{ID: s.ID, Attributes: next}
}

// Transaction returns a State whose attributes are replaced wholesale by the
// transform's result. The transform receives a copy of the full mapping, so
// multi-key edits are atomic with respect to the caller's view.
func (s State) Transaction(fn func(Attributes) Attributes) State {
	next := fn(s.cloneAttributes(0))
	if next == nil {
		next = make(Attributes)
	}
	return State{ID: s.ID, Attributes: next}
}

// Snapshot returns a copy safe to hand outside the owning actor.
func (s State) Snapshot() State {
	return State{ID: s.ID, Attributes: s.cloneAttributes(0)}
}

func (s State) cloneAttributes(extra int) Attributes {
	next := make(Attributes, len(s.Attributes)+extra)
	for t, a := range s.Attributes {
		next[t] = a
	}
	return next
}
