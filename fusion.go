package kfuse

import (
	"fmt"

	"github.com/streamfuse/kfuse/kmult"
	"github.com/streamfuse/kfuse/kusage"
)

// Decision is the outcome of a single fusion attempt. Bound is always the
// calculated fused bound, whether or not the fusion is safe; diagnostics use
// it to report what fusing would have cost.
type Decision struct {
	Fused  bool
	Stage  *Stage
	Bound  kmult.Multiplicity
	Reason string
}

// CanFuseOperators decides, from registry metadata alone, whether the
// upstream operator may be merged with the downstream one. On refusal the
// returned reason names the failed rule. Missing metadata for either side
// always refuses: unknown operators are never assumed safe.
func CanFuseOperators(reg *Registry, up, down string) (bool, string) {
	upMD, ok := reg.Get(up)
	if !ok {
		return false, fmt.Sprintf("no metadata for upstream operator %q", up)
	}
	downMD, ok := reg.Get(down)
	if !ok {
		return false, fmt.Sprintf("no metadata for downstream operator %q", down)
	}
	return canFuseMetadata(upMD, downMD)
}

// canFuseMetadata applies the fusion rule lattice in order.
func canFuseMetadata(up, down Metadata) (bool, string) {
	// Unbounded fan-out can never be merged: fusing would erase the
	// per-element boundary downstream logic relies on.
	if up.Shape.Kind == kusage.ShapeUnbounded {
		return false, "unbounded upstream fan-out cannot cross a fusion boundary"
	}

	// A true 1:1 stateless transform never changes multiplicity, so it
	// merges into any downstream.
	if up.Category == CategoryStateless && up.Shape.IsIdentity() {
		return true, ""
	}

	// A finitely bounded upstream feeding a stateless downstream is safe:
	// the downstream has no state or effects to over-run. Conditional
	// shapes count as finite, bounded by their max branch.
	if up.Shape.Finite() && down.Category == CategoryStateless {
		return true, ""
	}

	// Two stateful stages with finite bounds compose; the fused bound is
	// the product of the parts.
	if up.Category == CategoryStateful && down.Category == CategoryStateful &&
		up.Shape.Finite() && down.Shape.Finite() {
		return true, ""
	}

	return false, fmt.Sprintf(
		"no fusion rule covers upstream %s/%s feeding downstream %s/%s",
		up.Category, up.Shape, down.Category, down.Shape,
	)
}

// WouldIncreaseMultiplicity reports whether the naive fused bound (product of
// the declared bounds) strictly exceeds the bound the downstream operator
// would see on its own. This is a diagnostic signal, distinct from the hard
// CanFuseOperators veto. Missing metadata reports true: the increase cannot
// be ruled out.
func WouldIncreaseMultiplicity(reg *Registry, up, down string) bool {
	upMD, ok := reg.Get(up)
	if !ok {
		return true
	}
	downMD, ok := reg.Get(down)
	if !ok {
		return true
	}
	independent := downMD.Shape.Bound()
	naive := upMD.Shape.Bound().Mul(independent)
	return independent.Less(naive)
}

// CalculateFusedBound returns the bound of the fused pair per the declared
// shapes, regardless of fusibility.
func CalculateFusedBound(a, b *Stage) kmult.Multiplicity {
	return a.Shape.Bound().Mul(b.Shape.Bound())
}
