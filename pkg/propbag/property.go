package propbag

import "fmt"

// Property is a described, type-erased value with a lifecycle state.
//
// The zero Property is Undefined and holds NoneType. The first value stored
// into an Undefined property fixes its type; later sets must use the same
// type and move the state from HasDefaultValue to HasProvidedValue.
//
// Copying a Property with = or *p shares the held value, see AnyValue; use
// Clone for an independent copy.
type Property struct {
	holder      AnyValue
	description string
	state       State

	// sealed properties reject every mutation, see PropertyBag.GetProperty
	sealed bool
}

// NewProperty returns a property holding value. A nil value or a NoneType
// yields an Undefined property, anything else starts in HasDefaultValue.
func NewProperty(value any, doc string) *Property {
	p := &Property{description: doc}
	p.holder.Set(value)
	if p.holder.tag != noneTag {
		p.state = HasDefaultValue
	}
	return p
}

// PropertyOf is the typed form of NewProperty. It keeps T even when T is an
// interface type.
func PropertyOf[T any](value T, doc string) *Property {
	p := &Property{description: doc, holder: Of(value)}
	if p.holder.tag != noneTag {
		p.state = HasDefaultValue
	}
	return p
}

// Type returns the tag of the held value.
func (p *Property) Type() TypeTag {
	if p.holder.Empty() {
		return noneTag
	}
	return p.holder.tag
}

// TypeName returns the display name of the held type.
func (p *Property) TypeName() string {
	return NameOf(p.Type())
}

func (p *Property) State() State {
	return p.state
}

// IsDefined reports whether the property holds a value.
func (p *Property) IsDefined() bool {
	return p.state != Undefined
}

// IsDefault reports whether the property still holds its first value.
func (p *Property) IsDefault() bool {
	return p.state == HasDefaultValue
}

// IsModified reports whether the first value was replaced.
func (p *Property) IsModified() bool {
	return p.state == HasProvidedValue
}

func (p *Property) Description() string {
	return p.description
}

// SetDescription replaces the description. It is ignored on sealed properties.
func (p *Property) SetDescription(doc string) {
	if p.sealed {
		return
	}
	p.description = doc
}

// Interface returns a copy of the held value.
func (p *Property) Interface() any {
	if p.holder.Empty() {
		return NoneType{}
	}
	return p.holder.Interface()
}

// Set stores value, typed by its dynamic type. It fails with ErrTypeMismatch
// unless the property is Undefined or already holds that type.
func (p *Property) Set(value any) error {
	if p.sealed {
		return ErrSealedProperty
	}

	tag := TypeOfValue(value)
	if err := p.enforceSet(tag); err != nil {
		return err
	}

	p.holder.Set(value)
	p.state = p.state.next()
	return nil
}

// SetValue is the typed form of Property.Set.
func SetValue[T any](p *Property, value T) error {
	if p.sealed {
		return ErrSealedProperty
	}

	if err := p.enforceSet(TypeOf[T]()); err != nil {
		return err
	}

	Assign(&p.holder, value)
	p.state = p.state.next()
	return nil
}

func (p *Property) enforceSet(tag TypeTag) error {
	if p.state == Undefined || p.Type() == tag {
		return nil
	}
	return mismatch("Property.Set", p.Type(), tag)
}

// Get returns a copy of the held value. It fails with ErrTypeMismatch if the
// property does not hold a T, which includes asking an Undefined property for
// anything but NoneType.
func Get[T any](p *Property) (T, error) {
	ptr, err := Ref[T](p)
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}

// Ref returns a pointer to the held value, see Get. The pointer stays valid
// until the property is set again.
func Ref[T any](p *Property) (*T, error) {
	if err := EnforceType[T](p); err != nil {
		return nil, err
	}

	if p.holder.Empty() {
		// zero property, materialize the NoneType it stands for
		Assign(&p.holder, NoneType{})
	}

	return Extract[T](&p.holder)
}

// MustGet is like Get but panics on a type mismatch.
func MustGet[T any](p *Property) T {
	value, err := Get[T](p)
	if err != nil {
		panic(err)
	}
	return value
}

// EnforceType fails with ErrTypeMismatch if p does not hold a T.
func EnforceType[T any](p *Property) error {
	want := TypeOf[T]()
	if p.Type() != want {
		return mismatch("Property.EnforceType", p.Type(), want)
	}
	return nil
}

// Is reports whether p holds a T.
func Is[T any](p *Property) bool {
	return p.Type() == TypeOf[T]()
}

// IsCompatible reports whether a T could be stored into p.
func IsCompatible[T any](p *Property) bool {
	return Is[T](p) || p.state == Undefined
}

// SameType reports whether both properties hold the same type.
func (p *Property) SameType(other *Property) bool {
	return p.Type() == other.Type()
}

// CompatibleWith reports whether both properties hold the same type or either
// one is Undefined.
func (p *Property) CompatibleWith(other *Property) bool {
	return p.SameType(other) || p.state == Undefined || other.state == Undefined
}

// Clone returns an independent deep copy of p. The copy is never sealed.
// Unexported struct fields are copied shallowly, so values that keep pointers,
// maps or bags in such fields need their own Clone method.
func (p *Property) Clone() *Property {
	return &Property{
		holder:      p.holder.Clone(),
		description: p.description,
		state:       p.state,
	}
}

func (p *Property) String() string {
	return fmt.Sprintf("%v (%s, %s)", p.Interface(), p.TypeName(), p.state)
}
