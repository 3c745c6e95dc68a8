package kops

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/streamfuse/kfuse"
	"github.com/streamfuse/kfuse/kmult"
	"github.com/streamfuse/kfuse/kusage"
)

func TestMap(t *testing.T) {
	stage := Map(func(v int) int { return v * 2 })

	assert.Equal(t, "map", stage.Operator)
	assert.Equal(t, kfuse.CategoryStateless, stage.Category)
	assert.True(t, stage.Shape.IsIdentity())
	assert.Equal(t, kmult.One, stage.Usage(7))

	state, out, err := stage.Run(context.Background(), 21, nil)
	assert.NoError(t, err)
	assert.True(t, state == nil)
	assert.Equal(t, 42, out.(int))
}

func TestMapInputTypeError(t *testing.T) {
	stage := Map(func(v int) int { return v })
	_, _, err := stage.Run(context.Background(), "not an int", nil)
	assert.True(t, errors.Is(err, ErrInputType))
}

func TestFilter(t *testing.T) {
	stage := Filter(func(v int) bool { return v > 0 })

	assert.Equal(t, kusage.ShapeConditional, stage.Shape.Kind)
	assert.Equal(t, kmult.One, stage.Usage(5))
	assert.Equal(t, kmult.Zero, stage.Usage(-5))

	_, out, err := stage.Run(context.Background(), 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, 5, out.(int))

	_, out, err = stage.Run(context.Background(), -5, nil)
	assert.NoError(t, err)
	assert.True(t, out == nil)
}

func TestScan(t *testing.T) {
	stage := Scan(0, func(sum, v int) (int, int) { return sum + v, sum + v })

	assert.Equal(t, kfuse.CategoryStateful, stage.Category)

	var state any
	var out any
	var err error
	state, out, err = stage.Run(context.Background(), 1, state)
	assert.NoError(t, err)
	assert.Equal(t, 1, out.(int))

	state, out, err = stage.Run(context.Background(), 2, state)
	assert.NoError(t, err)
	assert.Equal(t, 3, out.(int))

	_, out, err = stage.Run(context.Background(), 4, state)
	assert.NoError(t, err)
	assert.Equal(t, 7, out.(int))
}

func TestFlatMap(t *testing.T) {
	stage := FlatMap(func(v string) []string { return []string{v, v} })

	assert.True(t, stage.Usage("x").IsUnbounded())
	assert.Equal(t, kusage.ShapeUnbounded, stage.Shape.Kind)

	_, out, err := stage.Run(context.Background(), "a", nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, out.([]string))
}

// Take's declared bound is input-independent: the stage can never run its
// downstream effect more than n times, whatever it is fed.
func TestTakeUsage(t *testing.T) {
	stage := Take[string](5)
	for _, input := range []any{"a", "", 42, nil} {
		assert.Equal(t, kmult.Exact(5), stage.Usage(input))
	}
}

func TestTakeRun(t *testing.T) {
	stage := Take[int](2)

	var state any
	var out any
	var err error

	state, out, err = stage.Run(context.Background(), 10, state)
	assert.NoError(t, err)
	assert.Equal(t, 10, out.(int))

	state, out, err = stage.Run(context.Background(), 20, state)
	assert.NoError(t, err)
	assert.Equal(t, 20, out.(int))

	// Third input is dropped, state stays at the limit.
	state, out, err = stage.Run(context.Background(), 30, state)
	assert.NoError(t, err)
	assert.True(t, out == nil)
	assert.Equal(t, uint64(2), state.(uint64))
}

func TestForEach(t *testing.T) {
	var seen []string
	stage := ForEach(func(v string) { seen = append(seen, v) })

	assert.Equal(t, kfuse.CategoryEffectful, stage.Category)

	_, out, err := stage.Run(context.Background(), "a", nil)
	assert.NoError(t, err)
	assert.Equal(t, "a", out.(string))
	assert.Equal(t, []string{"a"}, seen)
}

func TestStageTypesCaptured(t *testing.T) {
	stage := Map(func(v int) string { return "" })
	assert.Equal(t, "int", stage.InputType().String())
	assert.Equal(t, "string", stage.OutputType().String())
}
