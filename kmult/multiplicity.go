// Package kmult implements the multiplicity domain used for usage tracking:
// an upper bound on how many times a stage's effect runs per logical input.
// A bound is either Exact(n) for a finite n, or Unbounded.
//
// Unbounded is absorbing under Add, Mul and Max, with one exception:
// Exact(0) * Unbounded = Exact(0). Zero invocations upstream means zero
// invocations downstream, regardless of downstream's own fan-out.
// Arithmetic that would overflow uint64 saturates to Unbounded so a bound
// never silently wraps below its true value.
package kmult

import (
	"math/bits"
	"strconv"
)

// Multiplicity is an upper bound on effect invocations per logical input.
// The zero value is Exact(0).
type Multiplicity struct {
	n         uint64
	unbounded bool
}

var (
	// Zero is Exact(0), the bound of a stage that never runs.
	Zero = Exact(0)
	// One is Exact(1), the bound of a strict 1:1 stage.
	One = Exact(1)
)

// Exact returns the finite bound n.
func Exact(n uint64) Multiplicity {
	return Multiplicity{n: n}
}

// Unbounded returns the absorbing top element.
func Unbounded() Multiplicity {
	return Multiplicity{unbounded: true}
}

// IsUnbounded reports whether m is the top element.
func (m Multiplicity) IsUnbounded() bool {
	return m.unbounded
}

// Count returns the finite count and true, or 0 and false if m is Unbounded.
func (m Multiplicity) Count() (uint64, bool) {
	if m.unbounded {
		return 0, false
	}
	return m.n, true
}

// Add returns the bound of running both effects.
// Any Unbounded operand makes the result Unbounded.
func (m Multiplicity) Add(o Multiplicity) Multiplicity {
	if m.unbounded || o.unbounded {
		return Unbounded()
	}
	sum, carry := bits.Add64(m.n, o.n, 0)
	if carry != 0 {
		return Unbounded()
	}
	return Exact(sum)
}

// Mul returns the bound of running o's effect once per invocation of m's.
// Exact(0) annihilates Unbounded; otherwise Unbounded is absorbing.
func (m Multiplicity) Mul(o Multiplicity) Multiplicity {
	if !m.unbounded && m.n == 0 {
		return Zero
	}
	if !o.unbounded && o.n == 0 {
		return Zero
	}
	if m.unbounded || o.unbounded {
		return Unbounded()
	}
	hi, lo := bits.Mul64(m.n, o.n)
	if hi != 0 {
		return Unbounded()
	}
	return Exact(lo)
}

// Max returns the larger of the two bounds.
func (m Multiplicity) Max(o Multiplicity) Multiplicity {
	if m.unbounded || o.unbounded {
		return Unbounded()
	}
	if m.n >= o.n {
		return m
	}
	return o
}

// LessEq reports whether m is at most o in the bound order:
// Exact(n) <= Exact(m) iff n <= m, Exact(n) <= Unbounded always,
// Unbounded <= Exact(n) never, Unbounded <= Unbounded.
func (m Multiplicity) LessEq(o Multiplicity) bool {
	if o.unbounded {
		return true
	}
	if m.unbounded {
		return false
	}
	return m.n <= o.n
}

// Less reports a strict inequality in the bound order.
func (m Multiplicity) Less(o Multiplicity) bool {
	return m.LessEq(o) && !o.LessEq(m)
}

func (m Multiplicity) String() string {
	if m.unbounded {
		return "unbounded"
	}
	return strconv.FormatUint(m.n, 10)
}

// MarshalText implements encoding.TextMarshaler so bounds render readably in
// plan output.
func (m Multiplicity) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
