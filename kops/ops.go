// Package kops provides constructors for the standard pipeline operators.
// Each constructor attaches the run function, the honest usage annotation
// and the registry-consistent category and shape, and captures reflect type
// signatures so chains can be validated before optimization.
//
// The execution semantics here are deliberately minimal; kfuse only needs
// stages to honor the run/usage contract. Real drivers may supply their own
// operators via kfuse.NewStage.
package kops

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/streamfuse/kfuse"
	"github.com/streamfuse/kfuse/kusage"
)

// ErrInputType reports a run invocation whose input does not match the
// stage's declared input type.
var ErrInputType = errors.New("unexpected input type")

func inputError(op string, want reflect.Type, got any) error {
	return fmt.Errorf("%w: %s expects %s, got %T", ErrInputType, op, want, got)
}

// Map creates a strict 1:1 transform stage.
//
// Example:
//
//	kops.Map(func(v Order) float64 { return v.Total })
func Map[In, Out any](f func(In) Out) *kfuse.Stage {
	inT, outT := reflect.TypeOf((*In)(nil)).Elem(), reflect.TypeOf((*Out)(nil)).Elem()
	return kfuse.NewStage("map", kfuse.CategoryStateless, kusage.ConstantShape(1), kusage.Once(),
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(In)
			if !ok {
				return state, nil, inputError("map", inT, input)
			}
			return state, f(v), nil
		},
		kfuse.WithTypes(inT, outT),
	)
}

// Filter creates a stage that passes inputs matching the predicate and
// drops the rest. Its usage is conditional: the downstream effect runs once
// for kept inputs and not at all for dropped ones.
func Filter[T any](predicate func(T) bool) *kfuse.Stage {
	inT := reflect.TypeOf((*T)(nil)).Elem()
	usage := kusage.Conditional(func(input any) bool {
		v, ok := input.(T)
		return ok && predicate(v)
	}, 1, 0)
	return kfuse.NewStage("filter", kfuse.CategoryStateless, kusage.ConditionalShape(1), usage,
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(T)
			if !ok {
				return state, nil, inputError("filter", inT, input)
			}
			if !predicate(v) {
				return state, nil, nil
			}
			return state, v, nil
		},
		kfuse.WithTypes(inT, inT),
	)
}

// Scan creates a stateful 1:1 stage that folds an accumulator over the
// inputs and emits the result of each step.
//
// Example:
//
//	kops.Scan(0, func(sum int, v int) (int, int) {
//	    return sum + v, sum + v
//	})
func Scan[S, In, Out any](init S, f func(S, In) (S, Out)) *kfuse.Stage {
	inT, outT := reflect.TypeOf((*In)(nil)).Elem(), reflect.TypeOf((*Out)(nil)).Elem()
	return kfuse.NewStage("scan", kfuse.CategoryStateful, kusage.ConstantShape(1), kusage.Once(),
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(In)
			if !ok {
				return state, nil, inputError("scan", inT, input)
			}
			acc := init
			if state != nil {
				acc, ok = state.(S)
				if !ok {
					return state, nil, fmt.Errorf("scan got foreign state %T", state)
				}
			}
			acc, out := f(acc, v)
			return acc, out, nil
		},
		kfuse.WithTypes(inT, outT),
	)
}

// FlatMap creates a stage with data-dependent, unbounded fan-out: each input
// expands to zero or more outputs. Its usage is honestly Unbounded; the true
// count is only known once the input is seen.
func FlatMap[In, Out any](f func(In) []Out) *kfuse.Stage {
	inT := reflect.TypeOf((*In)(nil)).Elem()
	return kfuse.NewStage("flatMap", kfuse.CategoryStateless, kusage.UnboundedShape(), kusage.Unbounded(),
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(In)
			if !ok {
				return state, nil, inputError("flatMap", inT, input)
			}
			return state, f(v), nil
		},
		kfuse.WithTypes(inT, reflect.TypeOf((*[]Out)(nil)).Elem()),
	)
}

// Take creates a stage that passes the first n inputs and drops the rest.
// Its usage bound is Exact(n) for every input, by construction: the stage
// can never run its downstream effect more than n times in total, so n is a
// sound input-independent ceiling.
func Take[T any](n uint64) *kfuse.Stage {
	inT := reflect.TypeOf((*T)(nil)).Elem()
	return kfuse.NewStage("take", kfuse.CategoryStateful, kusage.DataDependentShape(), kusage.Constant(n),
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(T)
			if !ok {
				return state, nil, inputError("take", inT, input)
			}
			var seen uint64
			if state != nil {
				seen, ok = state.(uint64)
				if !ok {
					return state, nil, fmt.Errorf("take got foreign state %T", state)
				}
			}
			if seen >= n {
				return seen, nil, nil
			}
			return seen + 1, v, nil
		},
		kfuse.WithTypes(inT, inT),
	)
}

// ForEach creates an effectful 1:1 stage that invokes f for each input and
// passes the input through unchanged.
func ForEach[T any](f func(T)) *kfuse.Stage {
	inT := reflect.TypeOf((*T)(nil)).Elem()
	return kfuse.NewStage("forEach", kfuse.CategoryEffectful, kusage.ConstantShape(1), kusage.Once(),
		func(_ context.Context, input, state any) (any, any, error) {
			v, ok := input.(T)
			if !ok {
				return state, nil, inputError("forEach", inT, input)
			}
			f(v)
			return state, v, nil
		},
		kfuse.WithTypes(inT, inT),
	)
}
