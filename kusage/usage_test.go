package kusage

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/streamfuse/kfuse/kmult"
)

func TestOnce(t *testing.T) {
	u := Once()
	assert.Equal(t, kmult.One, u("anything"))
	assert.Equal(t, kmult.One, u(nil))
}

func TestConstant(t *testing.T) {
	u := Constant(3)
	assert.Equal(t, kmult.Exact(3), u(1))
	assert.Equal(t, kmult.Exact(3), u("x"))
}

func TestConditional(t *testing.T) {
	u := Conditional(func(in any) bool { return in.(int) > 0 }, 1, 0)
	assert.Equal(t, kmult.One, u(5))
	assert.Equal(t, kmult.Zero, u(-5))
}

func TestDependent(t *testing.T) {
	u := Dependent(func(in any) kmult.Multiplicity {
		batch, ok := in.([]int)
		if !ok {
			return kmult.Unbounded()
		}
		return kmult.Exact(uint64(len(batch)))
	})
	assert.Equal(t, kmult.Exact(4), u([]int{1, 2, 3, 4}))
	assert.Equal(t, kmult.Unbounded(), u("not a batch"))
}

func TestUnbounded(t *testing.T) {
	u := Unbounded()
	assert.True(t, u(42).IsUnbounded())
}

func TestShapeBound(t *testing.T) {
	assert.Equal(t, kmult.Exact(4), ConstantShape(4).Bound())
	assert.Equal(t, kmult.One, ConditionalShape(1).Bound())
	assert.Equal(t, kmult.Unbounded(), DataDependentShape().Bound())
	assert.Equal(t, kmult.Unbounded(), UnboundedShape().Bound())
}

func TestShapeFinite(t *testing.T) {
	assert.True(t, ConstantShape(0).Finite())
	assert.True(t, ConditionalShape(2).Finite())
	assert.False(t, DataDependentShape().Finite())
	assert.False(t, UnboundedShape().Finite())
}

func TestShapeCompose(t *testing.T) {
	t.Run("constant times constant", func(t *testing.T) {
		assert.Equal(t, ConstantShape(6), Compose(ConstantShape(2), ConstantShape(3)))
	})

	t.Run("identity preserved", func(t *testing.T) {
		s := Compose(ConstantShape(1), ConstantShape(1))
		assert.True(t, s.IsIdentity())
	})

	t.Run("conditional stays conditional", func(t *testing.T) {
		s := Compose(ConstantShape(1), ConditionalShape(1))
		assert.Equal(t, ShapeConditional, s.Kind)
		assert.Equal(t, uint64(1), s.K)
	})

	t.Run("unbounded absorbs", func(t *testing.T) {
		assert.Equal(t, UnboundedShape(), Compose(ConstantShape(1), UnboundedShape()))
		assert.Equal(t, UnboundedShape(), Compose(UnboundedShape(), ConditionalShape(1)))
	})

	t.Run("zero annihilates unbounded", func(t *testing.T) {
		assert.Equal(t, ConstantShape(0), Compose(ConstantShape(0), UnboundedShape()))
		assert.Equal(t, ConstantShape(0), Compose(UnboundedShape(), ConstantShape(0)))
	})

	t.Run("data dependent is sticky below unbounded", func(t *testing.T) {
		assert.Equal(t, DataDependentShape(), Compose(ConstantShape(2), DataDependentShape()))
		assert.Equal(t, UnboundedShape(), Compose(UnboundedShape(), DataDependentShape()))
	})

	t.Run("overflowing fan-out saturates", func(t *testing.T) {
		huge := ConstantShape(math.MaxUint64)
		assert.Equal(t, UnboundedShape(), Compose(huge, ConstantShape(2)))
		assert.Equal(t, UnboundedShape(), Compose(ConditionalShape(1<<32), ConstantShape(1<<32)))
	})
}
