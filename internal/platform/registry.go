package platform

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Registry maps platform names to their strategies.
type Registry struct {
	strategies map[string]Strategy
	order      []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry returns a registry with every built-in platform registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewWorkana())
	r.Register(NewFreelancer())
	return r
}

// Register adds a strategy to the registry.
func (r *Registry) Register(s Strategy) {
	name := s.Name()
	r.strategies[name] = s
	r.order = append(r.order, name)
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, eris.Errorf("platform: unknown platform %q", name)
	}
	return s, nil
}

// Names returns all registered platform names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ApplyOverrides reads a YAML file mapping platform name to a SelectorSet and
// overlays the non-empty fields onto the registered strategies. Missing file
// paths are an error; an empty path is a no-op.
func (r *Registry) ApplyOverrides(path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "platform: read selector overrides %s", path)
	}

	var overrides map[string]SelectorSet
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return eris.Wrapf(err, "platform: parse selector overrides %s", path)
	}

	for name, set := range overrides {
		s, ok := r.strategies[name]
		if !ok {
			return eris.Errorf("platform: selector overrides reference unknown platform %q", name)
		}
		if o, ok := s.(overridable); ok {
			o.applyOverrides(set)
		}
	}
	return nil
}

// overridable is implemented by built-in strategies that accept selector
// overrides.
type overridable interface {
	applyOverrides(SelectorSet)
}
