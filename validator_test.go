package kfuse_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/streamfuse/kfuse"
	"github.com/streamfuse/kfuse/kmult"
	"github.com/streamfuse/kfuse/kusage"
)

// countingStage fans out k times per input and records every run.
func countingStage(k uint64, runs *int) *kfuse.Stage {
	return kfuse.NewStage("fanout", kfuse.CategoryEffectful, kusage.ConstantShape(k), kusage.Constant(k),
		func(_ context.Context, input, state any) (any, any, error) {
			*runs++
			return state, input, nil
		},
	)
}

func TestWithUsageValidationDelegates(t *testing.T) {
	runs := 0
	stage := kfuse.WithUsageValidation(countingStage(2, &runs), kmult.Exact(3))

	state, out, err := stage.Run(context.Background(), "in", nil)
	assert.NoError(t, err)
	assert.Equal(t, "in", out.(string))
	assert.True(t, state == nil)
	assert.Equal(t, 1, runs)
}

func TestWithUsageValidationRejectsBeforeRun(t *testing.T) {
	runs := 0
	stage := kfuse.WithUsageValidation(countingStage(4, &runs), kmult.Exact(3))

	prevState := any("prev")
	state, _, err := stage.Run(context.Background(), "in", prevState)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, kfuse.ErrUsageExceeded))

	var ue *kfuse.UsageExceededError
	assert.True(t, errors.As(err, &ue))
	assert.Equal(t, "fanout", ue.Operator)
	assert.Equal(t, kmult.Exact(4), ue.Computed)
	assert.Equal(t, kmult.Exact(3), ue.Max)

	// The underlying run never executed and the state is untouched.
	assert.Equal(t, 0, runs)
	assert.Equal(t, "prev", state.(string))
}

func TestWithUsageValidationFailureIsReproducible(t *testing.T) {
	runs := 0
	stage := kfuse.WithUsageValidation(countingStage(4, &runs), kmult.Exact(3))

	state1, _, err1 := stage.Run(context.Background(), "in", nil)
	state2, _, err2 := stage.Run(context.Background(), "in", state1)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Equal(t, state1, state2)
	assert.Equal(t, 0, runs)
}

func TestWithUsageValidationUnboundedCeiling(t *testing.T) {
	runs := 0
	stage := kfuse.WithUsageValidation(countingStage(1000, &runs), kmult.Unbounded())

	_, _, err := stage.Run(context.Background(), "in", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestWithUsageValidationNesting(t *testing.T) {
	// Nested ceilings enforce the minimum, regardless of ordering.
	runs := 0
	inner := kfuse.WithUsageValidation(countingStage(2, &runs), kmult.Exact(5))
	outer := kfuse.WithUsageValidation(inner, kmult.Exact(1))

	_, _, err := outer.Run(context.Background(), "in", nil)
	assert.True(t, errors.Is(err, kfuse.ErrUsageExceeded))
	assert.Equal(t, 0, runs)

	loose := kfuse.WithUsageValidation(inner, kmult.Exact(10))
	_, _, err = loose.Run(context.Background(), "in", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, runs)
}
