package kfuse

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync/atomic"

	"github.com/streamfuse/kfuse/kmult"
)

// Stats are the fusion counters for one OptimizeChain run.
type Stats struct {
	TotalAttempts     int
	SuccessfulFusions int
	SkippedFusions    int

	// AverageBoundReduction is the mean, over successful fusions with
	// finite bounds, of (upstream bound + downstream bound) - fused bound.
	// Fusions involving an unbounded side contribute zero.
	AverageBoundReduction float64
}

// Plan is the result of optimizing a chain: the (possibly shorter) chain,
// the overall usage bound across all sealed segments, the fusion counters
// and human-readable diagnostics for every skipped boundary.
type Plan struct {
	Chain       Chain
	Bound       kmult.Multiplicity
	Stats       Stats
	Diagnostics []string
}

// Optimizer fuses adjacent chain stages using an injected, immutable
// operator registry. Safe for concurrent use; the debug toggle is atomic.
type Optimizer struct {
	registry *Registry
	log      *slog.Logger
	debug    atomic.Bool
	statsFn  func(Stats)
}

// New creates an Optimizer over the given registry. A nil registry defaults
// to DefaultRegistry().
func New(registry *Registry, opts ...Option) *Optimizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	o := &Optimizer{
		registry: registry,
		log:      NullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnableFusionDebug turns on per-attempt debug logging.
func (o *Optimizer) EnableFusionDebug() { o.debug.Store(true) }

// DisableFusionDebug turns off per-attempt debug logging.
func (o *Optimizer) DisableFusionDebug() { o.debug.Store(false) }

// Fuse attempts to merge two adjacent stages. On success the decision
// carries the composed stage tagged "a+b"; on refusal it carries the reason.
// Bound is the calculated fused bound either way.
func (o *Optimizer) Fuse(a, b *Stage) Decision {
	bound := CalculateFusedBound(a, b)
	ok, reason := CanFuseOperators(o.registry, a.Operator, b.Operator)
	if !ok {
		return Decision{Bound: bound, Reason: reason}
	}
	return Decision{
		Fused: true,
		Stage: ComposeUsage(a, b),
		Bound: bound,
	}
}

// segment is the optimizer's accumulator: a stage plus the effective
// metadata used for the next boundary decision. For original stages the
// metadata comes from the registry; for fused stages it is the joined
// category and composed shape, so boundary checks never depend on registry
// lookups of synthetic "a+b" names.
type segment struct {
	stage *Stage
	md    Metadata
	known bool
}

// bound is the segment's contribution to the overall chain bound. It comes
// from the stage's declared shape, so fused segments keep their composed
// precision even though their synthetic names have no registry entry.
func (s segment) bound() kmult.Multiplicity {
	return s.stage.Shape.Bound()
}

// OptimizeChain performs one greedy left-to-right pass: each stage is fused
// into the running accumulator when the boundary is safe, otherwise the
// accumulator is sealed and restarted. Chains of length 0 or 1 are returned
// unchanged. Missing operator metadata is never an error; the boundary is
// simply not fused and a diagnostic is recorded. Re-running OptimizeChain on
// an optimized chain is idempotent.
//
// The pass is deliberately non-optimal: no look-ahead, no backtracking.
// Unfused stages still execute correctly in their original order, so the
// unoptimized chain is always a valid fallback.
func (o *Optimizer) OptimizeChain(chain Chain) Plan {
	if len(chain) == 0 {
		return o.finish(Plan{Chain: chain, Bound: kmult.One})
	}
	if len(chain) == 1 {
		return o.finish(Plan{
			Chain: chain,
			Bound: chain[0].Shape.Bound(),
		})
	}

	var (
		out            Chain
		stats          Stats
		diags          []string
		totalReduction uint64
	)
	bound := kmult.One
	acc := o.segmentFor(chain[0], &diags)

	for _, next := range chain[1:] {
		nseg := o.segmentFor(next, &diags)
		stats.TotalAttempts++

		ok, reason := false, "missing operator metadata"
		if acc.known && nseg.known {
			ok, reason = canFuseMetadata(acc.md, nseg.md)
		}

		if !ok {
			stats.SkippedFusions++
			diags = append(diags, fmt.Sprintf("skip %s -> %s: %s", acc.stage.Operator, next.Operator, reason))
			if o.debug.Load() {
				o.log.Debug("fusion skipped",
					"up", acc.stage.Operator,
					"down", next.Operator,
					"reason", reason,
				)
			}
			out = append(out, acc.stage)
			bound = bound.Mul(acc.bound())
			acc = nseg
			continue
		}

		fused := ComposeUsage(acc.stage, next)
		stats.SuccessfulFusions++
		totalReduction += boundReduction(acc.bound(), nseg.bound())
		if o.debug.Load() {
			o.log.Debug("fused",
				"up", acc.stage.Operator,
				"down", next.Operator,
				"stage", fused.Operator,
				"bound", fused.Shape.Bound().String(),
			)
		}
		acc = segment{
			stage: fused,
			md:    Metadata{Category: fused.Category, Shape: fused.Shape},
			known: true,
		}
	}
	out = append(out, acc.stage)
	bound = bound.Mul(acc.bound())

	if stats.SuccessfulFusions > 0 {
		stats.AverageBoundReduction = float64(totalReduction) / float64(stats.SuccessfulFusions)
	}

	return o.finish(Plan{
		Chain:       out,
		Bound:       bound,
		Stats:       stats,
		Diagnostics: diags,
	})
}

// segmentFor resolves a stage's effective metadata from the registry.
// Unknown operators are never fused, on either side of a boundary.
func (o *Optimizer) segmentFor(s *Stage, diags *[]string) segment {
	md, ok := o.registry.Get(s.Operator)
	if !ok {
		if diags != nil {
			*diags = append(*diags, fmt.Sprintf("no metadata for operator %q; fusion disabled at its boundaries", s.Operator))
		}
		return segment{stage: s}
	}
	return segment{stage: s, md: md, known: true}
}

func (o *Optimizer) finish(p Plan) Plan {
	if o.statsFn != nil {
		o.statsFn(p.Stats)
	}
	return p
}

// boundReduction is the invocation-count saving of one fusion: the sum of
// the two segment bounds minus their product, clamped at zero. Unbounded on
// either side contributes nothing.
func boundReduction(up, down kmult.Multiplicity) uint64 {
	a, okA := up.Count()
	b, okB := down.Count()
	if !okA || !okB {
		return 0
	}
	hi, product := bits.Mul64(a, b)
	if hi != 0 {
		// An overflowing product implies both factors are at least 2,
		// so the product already dominates the sum.
		return 0
	}
	sum, carry := bits.Add64(a, b, 0)
	if carry == 0 && product >= sum {
		return 0
	}
	// With a carried sum the wrapped subtraction is still exact: the true
	// difference is a+b-ab <= min(a,b), which fits in uint64.
	return sum - product
}

// LogFusionStats writes the counters as a single structured record. It is a
// convenience for drivers that want stats on a logger rather than through a
// WithStatsFunc callback.
func LogFusionStats(log *slog.Logger, s Stats) {
	log.Info("fusion stats",
		"totalAttempts", s.TotalAttempts,
		"successfulFusions", s.SuccessfulFusions,
		"skippedFusions", s.SkippedFusions,
		"averageBoundReduction", s.AverageBoundReduction,
	)
}
