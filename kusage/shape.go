package kusage

import (
	"fmt"
	"math/bits"

	"github.com/streamfuse/kfuse/kmult"
)

// ShapeKind classifies how an operator's usage bound behaves across inputs.
type ShapeKind int

const (
	// ShapeUnbounded is data-dependent fan-out with no finite bound. It is
	// the zero value so that an undeclared shape is conservative, never a
	// silent Constant(0).
	ShapeUnbounded ShapeKind = iota
	// ShapeConstant is a fixed fan-out of K for every input.
	ShapeConstant
	// ShapeConditional is a branch between two finite fan-outs; K carries
	// the larger branch.
	ShapeConditional
	// ShapeDataDependent is a finite bound computable only from the input
	// structure. Conservatively treated as unbounded by static analysis.
	ShapeDataDependent
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeConstant:
		return "Constant"
	case ShapeConditional:
		return "Conditional"
	case ShapeDataDependent:
		return "DataDependent"
	case ShapeUnbounded:
		return "Unbounded"
	default:
		return "Unknown"
	}
}

// Shape is the static usage classification of an operator, the only
// information fusion decisions may rely on.
type Shape struct {
	Kind ShapeKind

	// K is the fan-out for ShapeConstant and the max branch for
	// ShapeConditional. Ignored for the other kinds.
	K uint64
}

// ConstantShape returns the shape of a fixed fan-out k.
func ConstantShape(k uint64) Shape {
	return Shape{Kind: ShapeConstant, K: k}
}

// ConditionalShape returns the shape of a branch bounded by maxBranch.
func ConditionalShape(maxBranch uint64) Shape {
	return Shape{Kind: ShapeConditional, K: maxBranch}
}

// DataDependentShape returns the shape of an input-structure-dependent bound.
func DataDependentShape() Shape {
	return Shape{Kind: ShapeDataDependent}
}

// UnboundedShape returns the shape of unbounded fan-out.
func UnboundedShape() Shape {
	return Shape{Kind: ShapeUnbounded}
}

// Bound returns the most precise multiplicity the shape guarantees without
// seeing an input. DataDependent collapses to Unbounded: the bound exists but
// cannot be named statically.
func (s Shape) Bound() kmult.Multiplicity {
	switch s.Kind {
	case ShapeConstant:
		return kmult.Exact(s.K)
	case ShapeConditional:
		return kmult.Exact(s.K)
	default:
		return kmult.Unbounded()
	}
}

// Finite reports whether the shape carries a statically known finite bound.
func (s Shape) Finite() bool {
	return s.Kind == ShapeConstant || s.Kind == ShapeConditional
}

// IsIdentity reports a strict 1:1 shape, the one fusion may always cross.
func (s Shape) IsIdentity() bool {
	return s.Kind == ShapeConstant && s.K == 1
}

// Compose returns the shape of running down once per invocation of up.
// Used by the optimizer to carry effective metadata across fused segments.
func Compose(up, down Shape) Shape {
	// Constant(0) upstream annihilates everything downstream.
	if up.Kind == ShapeConstant && up.K == 0 {
		return ConstantShape(0)
	}
	if down.Kind == ShapeConstant && down.K == 0 {
		return ConstantShape(0)
	}
	if up.Kind == ShapeUnbounded || down.Kind == ShapeUnbounded {
		return UnboundedShape()
	}
	if up.Kind == ShapeDataDependent || down.Kind == ShapeDataDependent {
		return DataDependentShape()
	}
	k, ok := mulFanOut(up.K, down.K)
	if !ok {
		return UnboundedShape()
	}
	if up.Kind == ShapeConstant && down.Kind == ShapeConstant {
		return ConstantShape(k)
	}
	// At least one side is conditional; the product of the max branches
	// still bounds every path.
	return ConditionalShape(k)
}

// mulFanOut multiplies two fan-out bounds, reporting false on uint64
// overflow so callers can fall back to an unbounded shape.
func mulFanOut(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func (s Shape) String() string {
	switch s.Kind {
	case ShapeConstant:
		return fmt.Sprintf("Constant(%d)", s.K)
	case ShapeConditional:
		return fmt.Sprintf("Conditional(max=%d)", s.K)
	default:
		return s.Kind.String()
	}
}
