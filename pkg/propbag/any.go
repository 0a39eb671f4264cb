package propbag

import "reflect"

// AnyValue owns at most one value of an arbitrary type. The zero AnyValue is
// empty. Values are stored in their own heap cell so Extract can hand out a
// pointer that stays valid until the AnyValue is reassigned.
//
// Assigning an AnyValue with = shares the cell; use Clone for an independent
// copy and Take to move the value out.
type AnyValue struct {
	tag TypeTag
	// ptr is a reflect.Value of kind Pointer to the held value
	ptr reflect.Value
}

// Of returns an AnyValue holding v, typed as T.
func Of[T any](v T) AnyValue {
	var a AnyValue
	Assign(&a, v)
	return a
}

// ValueOf returns an AnyValue holding v, typed by its dynamic type. An
// untyped nil yields a value holding NoneType.
func ValueOf(v any) AnyValue {
	var a AnyValue
	a.Set(v)
	return a
}

// Assign replaces the value held by a with v, typed as T.
func Assign[T any](a *AnyValue, v T) {
	ptr := new(T)
	*ptr = v

	a.tag = TypeOf[T]()
	a.ptr = reflect.ValueOf(ptr)
}

// Set replaces the held value with v, typed by its dynamic type. An untyped
// nil stores NoneType.
func (a *AnyValue) Set(v any) {
	if v == nil {
		Assign(a, NoneType{})
		return
	}

	a.setReflect(reflect.ValueOf(v))
}

func (a *AnyValue) setReflect(value reflect.Value) {
	ptr := reflect.New(value.Type())
	ptr.Elem().Set(value)

	a.tag = tagFor(value.Type())
	a.ptr = ptr
}

// Empty reports whether no value is held.
func (a AnyValue) Empty() bool {
	return a.tag == nil
}

// Type returns the tag of the held value. It panics if a is empty; check
// Empty first.
func (a AnyValue) Type() TypeTag {
	if a.tag == nil {
		panic("propbag: Type called on an empty AnyValue")
	}
	return a.tag
}

// Interface returns a copy of the held value as an interface, or nil if a is
// empty.
func (a AnyValue) Interface() any {
	if a.tag == nil {
		return nil
	}
	return a.ptr.Elem().Interface()
}

// Clone returns an independent deep copy of a.
func (a AnyValue) Clone() AnyValue {
	if a.tag == nil {
		return AnyValue{}
	}

	c := newCopier()
	return AnyValue{tag: a.tag, ptr: c.copyPointer(a.ptr)}
}

// Take moves the held value into a new AnyValue and leaves a empty.
func (a *AnyValue) Take() AnyValue {
	moved := *a
	*a = AnyValue{}
	return moved
}

// Reset drops the held value.
func (a *AnyValue) Reset() {
	*a = AnyValue{}
}

// Extract returns a pointer to the value held by a. It fails with
// ErrTypeMismatch if a is empty or holds a type other than T.
func Extract[T any](a *AnyValue) (*T, error) {
	want := TypeOf[T]()
	if a.tag != want {
		return nil, mismatch("", a.tag, want)
	}
	return a.ptr.Interface().(*T), nil
}

// Value returns a copy of the value held by a, see Extract.
func Value[T any](a AnyValue) (T, error) {
	ptr, err := Extract[T](&a)
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}
