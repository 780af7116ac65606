package strategy

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownStrategy is returned when an identifier has no registered
// constructor.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Constructor builds a fresh Strategy from validated parameters.
type Constructor func(p Params) (Strategy, error)

// Descriptor is the registry entry for one strategy: its metadata plus the
// constructor.
type Descriptor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags,omitempty"`
	Params      []ParamSpec `json:"params"`
	New         Constructor `json:"-"`
}

// DefaultParams returns the default value of every parameter that has one.
func (d Descriptor) DefaultParams() Params {
	p := make(Params, len(d.Params))
	for _, spec := range d.Params {
		if spec.Default != nil {
			p[spec.Name] = spec.Default
		}
	}
	return p
}

// Registry maps strategy identifiers to descriptors. It is populated at
// startup and read-only afterwards, so concurrent lookups are safe.
type Registry struct {
	strategies map[string]Descriptor
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Descriptor),
	}
}

// Register adds d to the registry, keyed by its ID.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return errors.New("registering strategy: empty id")
	}
	if d.New == nil {
		return fmt.Errorf("registering strategy %s: nil constructor", d.ID)
	}
	if _, dup := r.strategies[d.ID]; dup {
		return fmt.Errorf("registering strategy %s: already registered", d.ID)
	}
	r.strategies[d.ID] = d
	return nil
}

// MustRegister is Register that panics on error. Intended for startup wiring.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get retrieves a descriptor by ID. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.strategies[id]
	return d, ok
}

// List returns a sorted slice of all registered strategy IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Descriptors returns all descriptors sorted by ID.
func (r *Registry) Descriptors() []Descriptor {
	ids := r.List()
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.strategies[id])
	}
	return out
}

// New validates p against the strategy's parameter specs and constructs a
// new instance. Unknown IDs wrap ErrUnknownStrategy; parameter problems are
// returned as *ParamError.
func (r *Registry) New(id string, p Params) (Strategy, error) {
	d, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	validated, err := validateParams(id, d.Params, p)
	if err != nil {
		return nil, err
	}
	s, err := d.New(validated)
	if err != nil {
		return nil, fmt.Errorf("constructing strategy %s: %w", id, err)
	}
	return s, nil
}
