package kfuse

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamfuse/kfuse/kmult"
)

// ErrUsageExceeded is matched by errors.Is against usage ceiling violations.
var ErrUsageExceeded = errors.New("usage bound exceeded")

// UsageExceededError reports that a stage's computed usage for an input
// exceeds its declared ceiling. It is raised strictly before the underlying
// run executes, so no partial state mutation can have occurred.
type UsageExceededError struct {
	Operator string
	Computed kmult.Multiplicity
	Max      kmult.Multiplicity
}

func (e *UsageExceededError) Error() string {
	return fmt.Sprintf("usage bound exceeded: operator %q computed %s, max %s", e.Operator, e.Computed, e.Max)
}

func (e *UsageExceededError) Is(target error) bool {
	return target == ErrUsageExceeded
}

// WithUsageValidation wraps a stage so every run first checks the computed
// usage against maxUsage. If the bound is exceeded the run fails with a
// *UsageExceededError before the underlying run is invoked and returns the
// state unchanged. The wrapper is transparent: the result has the same
// operator, usage and shape, so nesting is safe and the effective ceiling is
// the minimum of the nested ceilings.
func WithUsageValidation(stage *Stage, maxUsage kmult.Multiplicity) *Stage {
	inner := stage.Run
	wrapped := stage.clone()
	wrapped.Run = func(ctx context.Context, input, state any) (any, any, error) {
		u := stage.Usage(input)
		if !u.LessEq(maxUsage) {
			return state, nil, &UsageExceededError{
				Operator: stage.Operator,
				Computed: u,
				Max:      maxUsage,
			}
		}
		return inner(ctx, input, state)
	}
	return wrapped
}
