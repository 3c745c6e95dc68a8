// Package kusage provides usage annotations for pipeline stages: runtime
// usage functions that compute a per-input multiplicity bound, and static
// usage shapes that classify an operator's bound without seeing any input.
//
// Usage functions must never under-declare the true invocation count. The
// validator can only catch over-bound violations at runtime, so honesty is a
// producer-side obligation.
package kusage

import "github.com/streamfuse/kfuse/kmult"

// Func computes the multiplicity bound for a single input value.
// Implementations must be pure, deterministic and side-effect free.
type Func func(input any) kmult.Multiplicity

// Once declares a strict 1:1 stage: the effect runs exactly once per input.
func Once() Func {
	return Constant(1)
}

// Constant declares a fixed fan-out of k, independent of the input.
func Constant(k uint64) Func {
	bound := kmult.Exact(k)
	return func(any) kmult.Multiplicity {
		return bound
	}
}

// Conditional declares a bound that depends on a pure predicate over the
// input, e.g. a filter runs its downstream effect once or not at all:
//
//	kusage.Conditional(func(v any) bool { return keep(v) }, 1, 0)
func Conditional(pred func(input any) bool, whenTrue, whenFalse uint64) Func {
	return func(input any) kmult.Multiplicity {
		if pred(input) {
			return kmult.Exact(whenTrue)
		}
		return kmult.Exact(whenFalse)
	}
}

// Dependent declares a bound computed from the input's structure, e.g. the
// element count of a batch. The function must return Unbounded rather than
// guess when no finite bound can be derived.
func Dependent(f func(input any) kmult.Multiplicity) Func {
	return Func(f)
}

// Unbounded declares data-dependent, unbounded fan-out (e.g. flatMap).
func Unbounded() Func {
	top := kmult.Unbounded()
	return func(any) kmult.Multiplicity {
		return top
	}
}
