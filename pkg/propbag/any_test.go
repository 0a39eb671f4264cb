package propbag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummy is a user defined value type used across the package tests.
type dummy struct {
	A int
	B float32
	S string
}

func defaultDummy() dummy {
	return dummy{A: 1, B: 3.14, S: "trololo"}
}

func TestAnyValueEmpty(t *testing.T) {
	var a AnyValue

	assert.True(t, a.Empty())
	assert.Nil(t, a.Interface())
	assert.Panics(t, func() { a.Type() })

	_, err := Extract[int](&a)
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "<empty>")
}

func TestAnyValueExtract(t *testing.T) {
	tests := []struct {
		name  string
		value any
		check func(t *testing.T, a AnyValue)
	}{
		{
			name:  "bool",
			value: true,
			check: func(t *testing.T, a AnyValue) {
				got, err := Value[bool](a)
				require.NoError(t, err)
				assert.True(t, got)
				assert.Equal(t, TypeOf[bool](), a.Type())
			},
		},
		{
			name:  "int",
			value: 5,
			check: func(t *testing.T, a AnyValue) {
				got, err := Value[int](a)
				require.NoError(t, err)
				assert.Equal(t, 5, got)
			},
		},
		{
			name:  "string",
			value: "five",
			check: func(t *testing.T, a AnyValue) {
				got, err := Value[string](a)
				require.NoError(t, err)
				assert.Equal(t, "five", got)
			},
		},
		{
			name:  "struct",
			value: defaultDummy(),
			check: func(t *testing.T, a AnyValue) {
				got, err := Value[dummy](a)
				require.NoError(t, err)
				assert.Equal(t, defaultDummy(), got)
			},
		},
		{
			name:  "slice",
			value: []string{"a", "b"},
			check: func(t *testing.T, a AnyValue) {
				got, err := Value[[]string](a)
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "b"}, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ValueOf(tt.value)
			require.False(t, a.Empty())
			assert.Equal(t, TypeOfValue(tt.value), a.Type())
			tt.check(t, a)
		})
	}
}

func TestAnyValueMismatch(t *testing.T) {
	a := Of(5)

	_, err := Extract[int64](&a)
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.EqualError(t, err, "could not convert from int to int64")

	_, err = Value[float64](a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Value[dummy](a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var mismatchErr *TypeMismatchError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, "int", mismatchErr.Have)
	assert.Equal(t, "propbag.dummy", mismatchErr.Want)
}

func TestAnyValueAssignReplacesType(t *testing.T) {
	a := Of(5)
	a.Set("now a string")

	assert.Equal(t, TypeOf[string](), a.Type())
	_, err := Value[int](a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	Assign(&a, defaultDummy())
	got, err := Value[dummy](a)
	require.NoError(t, err)
	assert.Equal(t, defaultDummy(), got)
}

func TestAnyValueExtractIsMutable(t *testing.T) {
	a := Of(defaultDummy())

	ptr, err := Extract[dummy](&a)
	require.NoError(t, err)
	ptr.S = "changed"

	got, err := Value[dummy](a)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.S)
}

func TestAnyValueCloneIsIndependent(t *testing.T) {
	a := Of([]string{"a", "b"})
	c := a.Clone()

	assert.Equal(t, a.Type(), c.Type())

	ptr, err := Extract[[]string](&c)
	require.NoError(t, err)
	(*ptr)[0] = "changed"

	original, err := Value[[]string](a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, original)

	var empty AnyValue
	assert.True(t, empty.Clone().Empty())
}

func TestAnyValueTake(t *testing.T) {
	a := Of(42)
	moved := a.Take()

	assert.True(t, a.Empty())
	got, err := Value[int](moved)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	moved.Reset()
	assert.True(t, moved.Empty())
}

func TestAnyValueInterfaceTypes(t *testing.T) {
	var stringer fmt.Stringer = NoneType{}
	a := Of(stringer)

	assert.Equal(t, TypeOf[fmt.Stringer](), a.Type())
	assert.NotEqual(t, TypeOf[NoneType](), a.Type())

	got, err := Value[fmt.Stringer](a)
	require.NoError(t, err)
	assert.Equal(t, "propbag.NoneType", got.String())

	// dynamic construction sees the concrete type
	assert.Equal(t, TypeOf[NoneType](), ValueOf(stringer).Type())
}

func TestAnyValueUntypedNil(t *testing.T) {
	a := ValueOf(nil)

	require.False(t, a.Empty())
	assert.Equal(t, TypeOf[NoneType](), a.Type())
}
