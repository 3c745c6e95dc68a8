package kfuse

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// anyType is the empty interface, which matches every signature.
var anyType = reflect.TypeOf((*any)(nil)).Elem()

var (
	ErrNilStage      = errors.New("nil stage in chain")
	ErrEmptyOperator = errors.New("stage has empty operator name")
	ErrTypeMismatch  = errors.New("type mismatch")
)

// Chain is an ordered sequence of stages. Optimization never reorders a
// chain; it may only shorten it by replacing adjacent runs with fused stages.
type Chain []*Stage

// Operators returns the operator names in chain order.
func (c Chain) Operators() []string {
	ops := make([]string, len(c))
	for i, s := range c {
		ops[i] = s.Operator
	}
	return ops
}

// Validate checks that the chain is structurally sound: no nil stages, no
// empty operator names, and adjacent type signatures line up. Untyped stages
// (nil signatures) and stages over the empty interface skip the adjacency
// check. All failures are reported, not just the first.
func (c Chain) Validate() error {
	var err error
	for i, s := range c {
		if s == nil {
			err = multierr.Append(err, fmt.Errorf("%w: position %d", ErrNilStage, i))
			continue
		}
		if s.Operator == "" {
			err = multierr.Append(err, fmt.Errorf("%w: position %d", ErrEmptyOperator, i))
		}
	}
	if err != nil {
		return err
	}

	for i := 0; i+1 < len(c); i++ {
		up, down := c[i], c[i+1]
		if up.outType == nil || down.inType == nil {
			continue
		}
		if up.outType == anyType || down.inType == anyType {
			continue
		}
		if up.outType != down.inType {
			err = multierr.Append(err, fmt.Errorf(
				"%w: %s outputs %s but %s expects %s",
				ErrTypeMismatch, up.Operator, up.outType, down.Operator, down.inType,
			))
		}
	}
	return err
}
