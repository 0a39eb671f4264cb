package propbag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyUndefined(t *testing.T) {
	tests := []struct {
		name string
		prop *Property
	}{
		{name: "zero value", prop: &Property{}},
		{name: "nil value", prop: NewProperty(nil, "")},
		{name: "none value", prop: NewProperty(NoneType{}, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.prop

			assert.False(t, p.IsDefined())
			assert.False(t, p.IsDefault())
			assert.False(t, p.IsModified())
			assert.Equal(t, Undefined, p.State())
			assert.Equal(t, "", p.Description())

			assert.True(t, Is[NoneType](p))
			assert.False(t, Is[bool](p))
			assert.False(t, Is[dummy](p))
			assert.Equal(t, "propbag.NoneType", p.TypeName())

			// anything can be stored into an undefined property
			assert.True(t, IsCompatible[NoneType](p))
			assert.True(t, IsCompatible[bool](p))
			assert.True(t, IsCompatible[dummy](p))

			require.NoError(t, EnforceType[NoneType](p))
			assert.ErrorIs(t, EnforceType[int](p), ErrTypeMismatch)

			_, err := Ref[NoneType](p)
			require.NoError(t, err)

			_, err = Get[int](p)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestPropertyStateTransitions(t *testing.T) {
	var p Property

	require.NoError(t, p.Set(5))
	assert.Equal(t, HasDefaultValue, p.State())
	assert.True(t, p.IsDefined())
	assert.True(t, p.IsDefault())
	assert.False(t, p.IsModified())
	assert.True(t, Is[int](&p))
	assert.False(t, Is[NoneType](&p))
	assert.Equal(t, "int", p.TypeName())
	assert.ErrorIs(t, EnforceType[NoneType](&p), ErrTypeMismatch)

	v, err := Get[int](&p)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	require.NoError(t, p.Set(6))
	assert.Equal(t, HasProvidedValue, p.State())
	assert.False(t, p.IsDefault())
	assert.True(t, p.IsModified())

	require.NoError(t, p.Set(7))
	assert.Equal(t, HasProvidedValue, p.State())
	assert.Equal(t, 7, MustGet[int](&p))
}

func TestPropertySetMismatch(t *testing.T) {
	p := NewProperty(1, "my_int")

	err := p.Set("text")
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.EqualError(t, err, "Property.Set: type mismatch, holds int whereas string was requested")

	// the failed set changes nothing
	assert.Equal(t, HasDefaultValue, p.State())
	assert.Equal(t, 1, MustGet[int](p))

	assert.ErrorIs(t, p.Set(int64(1)), ErrTypeMismatch)
	assert.ErrorIs(t, p.Set(nil), ErrTypeMismatch)
}

func TestPropertyTypedSet(t *testing.T) {
	p := PropertyOf[int64](1, "")

	require.NoError(t, SetValue[int64](p, 2))
	assert.Equal(t, int64(2), MustGet[int64](p))

	// the untyped constant defaults to int
	assert.ErrorIs(t, SetValue(p, 3), ErrTypeMismatch)
}

func TestPropertyInterfaceType(t *testing.T) {
	var stringer fmt.Stringer = State(0)
	p := PropertyOf(stringer, "")

	assert.True(t, Is[fmt.Stringer](p))
	assert.False(t, Is[State](p))
	require.NoError(t, SetValue[fmt.Stringer](p, HasProvidedValue))

	// dynamic Set uses the concrete type
	assert.ErrorIs(t, p.Set(HasProvidedValue), ErrTypeMismatch)
}

func TestPropertyAccessors(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		doc      string
		typeName string
		check    func(t *testing.T, p *Property)
	}{
		{
			name:     "bool",
			value:    true,
			doc:      "my_bool",
			typeName: "bool",
			check: func(t *testing.T, p *Property) {
				assert.True(t, MustGet[bool](p))
				assert.False(t, IsCompatible[int](p))
			},
		},
		{
			name:     "int",
			value:    1,
			doc:      "my_int",
			typeName: "int",
			check: func(t *testing.T, p *Property) {
				assert.Equal(t, 1, MustGet[int](p))
				assert.True(t, IsCompatible[int](p))
			},
		},
		{
			name:     "struct",
			value:    defaultDummy(),
			doc:      "my_dummy",
			typeName: "propbag.dummy",
			check: func(t *testing.T, p *Property) {
				ref, err := Ref[dummy](p)
				require.NoError(t, err)
				ref.A = 10
				assert.Equal(t, 10, MustGet[dummy](p).A)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProperty(tt.value, tt.doc)

			assert.True(t, p.IsDefined())
			assert.True(t, p.IsDefault())
			assert.Equal(t, tt.doc, p.Description())
			assert.Equal(t, tt.typeName, p.TypeName())
			assert.Equal(t, TypeOfValue(tt.value), p.Type())
			tt.check(t, p)
		})
	}
}

func TestPropertyCompatibility(t *testing.T) {
	b := NewProperty(true, "")
	i := NewProperty(1, "")
	j := NewProperty(2, "")
	u := &Property{}

	assert.False(t, b.SameType(i))
	assert.False(t, b.CompatibleWith(i))
	assert.True(t, i.SameType(j))
	assert.True(t, i.CompatibleWith(j))

	assert.False(t, u.SameType(i))
	assert.True(t, u.CompatibleWith(i))
	assert.True(t, i.CompatibleWith(u))
}

func TestPropertyDescription(t *testing.T) {
	p := NewProperty(1, "first")
	p.SetDescription("second")
	assert.Equal(t, "second", p.Description())
}

func TestPropertyClone(t *testing.T) {
	p := NewProperty([]int{1, 2}, "numbers")
	require.NoError(t, p.Set([]int{3, 4}))

	c := p.Clone()
	assert.Equal(t, p.State(), c.State())
	assert.Equal(t, p.Description(), c.Description())
	assert.True(t, c.SameType(p))
	assert.True(t, c.Equal(p))

	ref, err := Ref[[]int](c)
	require.NoError(t, err)
	(*ref)[0] = 9

	assert.Equal(t, []int{3, 4}, MustGet[[]int](p))
	assert.False(t, c.Equal(p))
}

type bagHolder struct {
	inner *Bag
}

func TestPropertyCloneSharesUnexportedFields(t *testing.T) {
	inner, err := NewBag("depth", 1)
	require.NoError(t, err)

	p := NewProperty(bagHolder{inner: inner}, "")
	c := p.Clone()

	held := MustGet[bagHolder](c)
	assert.Same(t, inner, held.inner)
}

func TestPropertyAssignmentSharesValue(t *testing.T) {
	p := NewProperty(1, "")
	shared := *p

	ref, err := Ref[int](&shared)
	require.NoError(t, err)
	*ref = 5
	assert.Equal(t, 5, MustGet[int](p))

	independent := p.Clone()
	ref, err = Ref[int](independent)
	require.NoError(t, err)
	*ref = 8
	assert.Equal(t, 5, MustGet[int](p))
}

func TestPropertyString(t *testing.T) {
	assert.Equal(t, "5 (int, default)", NewProperty(5, "").String())
	assert.Equal(t, "propbag.NoneType (propbag.NoneType, undefined)", (&Property{}).String())
}

func TestPropertyMustGetPanics(t *testing.T) {
	p := NewProperty("text", "")
	assert.Panics(t, func() { MustGet[int](p) })
}

func TestParseState(t *testing.T) {
	for _, s := range []State{Undefined, HasDefaultValue, HasProvidedValue} {
		parsed, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseState("bogus")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
