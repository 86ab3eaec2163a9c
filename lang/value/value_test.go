package value_test

import (
	"math"
	"testing"

	"github.com/buzzcut-s/clocks/lang/value"
	"github.com/stretchr/testify/require"
)

func TestNilBoolNumberRoundTrip(t *testing.T) {
	require.True(t, value.Nil.IsNil())
	require.True(t, value.True.IsBool())
	require.True(t, value.True.AsBool())
	require.True(t, value.False.IsBool())
	require.False(t, value.False.AsBool())

	n := value.Number(3.5)
	require.True(t, n.IsNumber())
	require.Equal(t, 3.5, n.AsNumber())
}

func TestTruthy(t *testing.T) {
	require.False(t, value.Nil.Truthy())
	require.False(t, value.False.Truthy())
	require.True(t, value.True.Truthy())
	require.True(t, value.Number(0).Truthy())
	require.True(t, value.Number(-1).Truthy())
}

func TestEqualNumberNaN(t *testing.T) {
	nan := value.Number(math.NaN())
	require.False(t, value.Equal(nan, nan), "NaN must not equal itself")
}

func TestEqualNilAndBool(t *testing.T) {
	require.True(t, value.Equal(value.Nil, value.Nil))
	require.True(t, value.Equal(value.True, value.True))
	require.False(t, value.Equal(value.True, value.False))
	require.False(t, value.Equal(value.Nil, value.False))
}

func TestStringRendering(t *testing.T) {
	require.Equal(t, "nil", value.Nil.String())
	require.Equal(t, "true", value.True.String())
	require.Equal(t, "false", value.False.String())
	require.Equal(t, "1.5", value.Number(1.5).String())
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "nil", value.Nil.TypeName())
	require.Equal(t, "bool", value.True.TypeName())
	require.Equal(t, "number", value.Number(1).TypeName())
}
