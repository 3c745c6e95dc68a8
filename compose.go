package kfuse

import (
	"context"
	"fmt"

	"github.com/streamfuse/kfuse/kmult"
	"github.com/streamfuse/kfuse/kusage"
)

// pairState holds the independently threaded states of a composed stage.
type pairState struct {
	up   any
	down any
}

// ComposeUsage builds the sequential composition a;b as a single stage. The
// pair state is threaded independently: a runs on the input with its own
// state, b runs on a's output with its own state. A nil output from a means
// the input was dropped; b does not run and the composed stage emits nil,
// matching how unfused chains propagate drops.
//
// The composed usage is derived from a's runtime usage and b's declared
// shape, since b's actual input is not known at usage-computation time:
// a finite upstream count multiplies with a Constant downstream shape; any
// non-constant downstream shape collapses to Unbounded; an Unbounded
// upstream stays Unbounded unless the downstream is Constant(0).
func ComposeUsage(a, b *Stage) *Stage {
	runA, runB := a.Run, b.Run
	run := func(ctx context.Context, input, state any) (any, any, error) {
		pair, err := pairOf(state)
		if err != nil {
			return state, nil, err
		}
		upState, mid, err := runA(ctx, input, pair.up)
		if err != nil {
			return state, nil, err
		}
		if mid == nil {
			return pairState{up: upState, down: pair.down}, nil, nil
		}
		downState, out, err := runB(ctx, mid, pair.down)
		if err != nil {
			return state, nil, err
		}
		return pairState{up: upState, down: downState}, out, nil
	}

	usageA := a.Usage
	downShape := b.Shape
	usage := func(input any) kmult.Multiplicity {
		u := usageA(input)
		if k, ok := u.Count(); ok {
			if k == 0 {
				return kmult.Zero
			}
			if downShape.Kind == kusage.ShapeConstant {
				return kmult.Exact(k).Mul(kmult.Exact(downShape.K))
			}
			return kmult.Unbounded()
		}
		if downShape.Kind == kusage.ShapeConstant && downShape.K == 0 {
			return kmult.Zero
		}
		return kmult.Unbounded()
	}

	return NewStage(
		a.Operator+"+"+b.Operator,
		joinCategory(a.Category, b.Category),
		kusage.Compose(a.Shape, b.Shape),
		usage,
		run,
		WithTypes(a.inType, b.outType),
	)
}

func pairOf(state any) (pairState, error) {
	if state == nil {
		return pairState{}, nil
	}
	pair, ok := state.(pairState)
	if !ok {
		return pairState{}, fmt.Errorf("composed stage got foreign state %T", state)
	}
	return pair, nil
}
