package behaviour

import (
	"fmt"
	"sort"
	"sync"

	"github.com/entitykit/entitykit/internal/core/events/bus"
)

// Factory builds a fresh Behaviour instance.
type Factory func() Behaviour

// Registry maps behaviour names to factories so archetype configs and
// gateway commands can attach behaviours by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a name to a factory. Duplicate names are rejected.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrFactoryRegistered, name)
	}
	r.factories[name] = f
	return nil
}

// New builds a behaviour instance for the given name.
func (r *Registry) New(name string) (Behaviour, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}
	return f(), nil
}

// Names lists registered behaviour names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterBuiltins wires the behaviours shipped with the runtime into a
// registry. The radio behaviour needs the event bus it publishes on.
func RegisterBuiltins(r *Registry, b *bus.Bus) error {
	builtins := map[string]Factory{
		string(MoverID):     func() Behaviour { return Mover{} },
		string(VitalsID):    func() Behaviour { return Vitals{} },
		string(LifecycleID): func() Behaviour { return Lifecycle{} },
		string(RadioID):     func() Behaviour { return NewRadio(b) },
	}
	for name, f := range builtins {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}
