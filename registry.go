package kfuse

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/streamfuse/kfuse/kusage"
)

var (
	ErrOperatorExists  = errors.New("operator already registered")
	ErrInvalidOperator = errors.New("invalid operator name")
)

// Metadata is the static classification of an operator: everything fusion
// decisions are allowed to look at.
type Metadata struct {
	Category Category
	Shape    kusage.Shape
}

// Registry is an immutable operator name -> metadata table. It is built once
// with a RegistryBuilder and injected into optimizers; there is no global
// mutable registry, so independent optimizer configurations can coexist.
// A Registry is safe for concurrent use.
type Registry struct {
	ops map[string]Metadata
}

// Get returns the metadata for an operator name. Unknown names return false
// and are never assumed safe by callers.
func (r *Registry) Get(name string) (Metadata, bool) {
	md, ok := r.ops[name]
	return md, ok
}

// Operators returns all registered operator names, sorted.
func (r *Registry) Operators() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ByCategory returns the sorted names of all operators in the category.
func (r *Registry) ByCategory(cat Category) []string {
	var names []string
	for name, md := range r.ops {
		if md.Category == cat {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// RegistryBuilder accumulates operator metadata before sealing it into an
// immutable Registry. Not safe for concurrent use; the built Registry is.
type RegistryBuilder struct {
	ops  map[string]Metadata
	errs error
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{ops: make(map[string]Metadata)}
}

// Register adds one operator. Names must be non-empty and free of
// whitespace; duplicates are rejected. The error is also remembered so
// Build reports every registration problem at once.
func (b *RegistryBuilder) Register(name string, md Metadata) error {
	var err error
	switch {
	case name == "":
		err = fmt.Errorf("%w: empty name", ErrInvalidOperator)
	case strings.ContainsAny(name, " \t\n\r"):
		err = fmt.Errorf("%w: %q contains whitespace", ErrInvalidOperator, name)
	default:
		if _, exists := b.ops[name]; exists {
			err = fmt.Errorf("%w: %q", ErrOperatorExists, name)
		}
	}
	if err != nil {
		b.errs = multierr.Append(b.errs, err)
		return err
	}
	b.ops[name] = md
	return nil
}

// MustRegister panics on registration failure.
func (b *RegistryBuilder) MustRegister(name string, md Metadata) {
	if err := b.Register(name, md); err != nil {
		panic(err)
	}
}

// Build seals the accumulated metadata into an immutable Registry. All
// registration errors are returned together.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if b.errs != nil {
		return nil, b.errs
	}
	ops := make(map[string]Metadata, len(b.ops))
	for name, md := range b.ops {
		ops[name] = md
	}
	return &Registry{ops: ops}, nil
}

// MustBuild panics if any registration failed.
func (b *RegistryBuilder) MustBuild() *Registry {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the metadata table for the standard operators.
func DefaultRegistry() *Registry {
	b := NewRegistryBuilder()
	b.MustRegister("map", Metadata{Category: CategoryStateless, Shape: kusage.ConstantShape(1)})
	b.MustRegister("filter", Metadata{Category: CategoryStateless, Shape: kusage.ConditionalShape(1)})
	b.MustRegister("scan", Metadata{Category: CategoryStateful, Shape: kusage.ConstantShape(1)})
	b.MustRegister("flatMap", Metadata{Category: CategoryStateless, Shape: kusage.UnboundedShape()})
	// The registry is keyed by name and cannot carry a take's count; the
	// per-stage usage annotation holds the precise bound.
	b.MustRegister("take", Metadata{Category: CategoryStateful, Shape: kusage.DataDependentShape()})
	b.MustRegister("forEach", Metadata{Category: CategoryEffectful, Shape: kusage.ConstantShape(1)})
	return b.MustBuild()
}
