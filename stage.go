// Package kfuse tracks per-stage usage bounds for stream pipelines and
// decides which adjacent stages may be fused into a single executable stage
// without changing observable invocation counts.
//
// The package never executes streams. Operator constructors supply a run
// function and an honest usage annotation; kfuse provides the bound
// arithmetic (kmult), the annotations (kusage), runtime ceiling enforcement,
// sequential composition, an operator metadata registry and a greedy chain
// optimizer. The external driver loop owns execution, retries and
// backpressure.
package kfuse

import (
	"context"
	"reflect"

	"github.com/streamfuse/kfuse/kusage"
)

// Category classifies a stage by its relationship to state and effects.
type Category int

const (
	// CategoryStateless stages carry no per-call state.
	CategoryStateless Category = iota
	// CategoryStateful stages thread accumulator state between calls.
	CategoryStateful
	// CategoryEffectful stages perform observable side effects.
	CategoryEffectful
)

func (c Category) String() string {
	switch c {
	case CategoryStateless:
		return "Stateless"
	case CategoryStateful:
		return "Stateful"
	case CategoryEffectful:
		return "Effectful"
	default:
		return "Unknown"
	}
}

// joinCategory returns the category of a stage that subsumes both inputs.
func joinCategory(a, b Category) Category {
	if a >= b {
		return a
	}
	return b
}

// RunFunc executes one invocation of a stage: it consumes an input and the
// stage's previous state and returns the next state and the output. A nil
// state is the stage's initial state.
type RunFunc func(ctx context.Context, input, state any) (newState, output any, err error)

// Stage is one pipeline stage: an executable run function plus the usage
// metadata fusion and validation decisions are made from. Stages are
// immutable once constructed; composition and wrapping always produce new
// values.
type Stage struct {
	// Operator is the registry name this stage was constructed under.
	// Fused stages carry synthetic "a+b" names.
	Operator string

	// Category classifies the stage for fusion safety.
	Category Category

	// Shape is the static usage classification declared by the
	// constructor. It must agree with Usage.
	Shape kusage.Shape

	// Usage computes the per-input bound. Must never under-declare the
	// true invocation count.
	Usage kusage.Func

	// Run executes the stage.
	Run RunFunc

	// Input/output signatures captured by typed constructors. Nil when
	// the stage is untyped; chain validation skips nil signatures.
	inType  reflect.Type
	outType reflect.Type
}

// StageOption configures optional Stage attributes at construction.
type StageOption func(*Stage)

// WithTypes records the stage's input and output type signatures so chains
// can be validated before optimization.
func WithTypes(in, out reflect.Type) StageOption {
	return func(s *Stage) {
		s.inType = in
		s.outType = out
	}
}

// NewStage constructs an immutable stage. A nil usage defaults to the most
// conservative annotation, Unbounded, never to Exact(1).
func NewStage(operator string, category Category, shape kusage.Shape, usage kusage.Func, run RunFunc, opts ...StageOption) *Stage {
	if usage == nil {
		usage = kusage.Unbounded()
	}
	s := &Stage{
		Operator: operator,
		Category: category,
		Shape:    shape,
		Usage:    usage,
		Run:      run,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InputType returns the captured input signature, or nil for untyped stages.
func (s *Stage) InputType() reflect.Type { return s.inType }

// OutputType returns the captured output signature, or nil for untyped stages.
func (s *Stage) OutputType() reflect.Type { return s.outType }

// clone returns a shallow copy. Used by wrappers so the original stage stays
// untouched.
func (s *Stage) clone() *Stage {
	c := *s
	return &c
}
