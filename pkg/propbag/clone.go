package propbag

import "reflect"

// copier deep copies values of arbitrary types. A type that defines
// Clone() T (on the value or on the pointer) is copied through that method,
// everything else is copied structurally. Unexported struct fields are copied
// shallowly; types that keep references in unexported fields should define
// Clone.
type copier struct {
	// seen maps an already copied pointer to its copy so shared pointers
	// stay shared and cyclic graphs terminate.
	seen map[pointerKey]reflect.Value
}

// pointerKey identifies a copied pointer. The address alone is ambiguous: a
// struct and its first field share one, and so do zero-size allocations.
type pointerKey struct {
	addr uintptr
	typ  reflect.Type
}

func newCopier() *copier {
	return &copier{seen: map[pointerKey]reflect.Value{}}
}

// copyPointer copies the value behind ptr into a fresh cell and returns a
// pointer to the copy.
func (c *copier) copyPointer(ptr reflect.Value) reflect.Value {
	target := reflect.New(ptr.Type().Elem())
	target.Elem().Set(c.copy(ptr.Elem()))
	return target
}

func (c *copier) copy(value reflect.Value) reflect.Value {
	if !value.IsValid() {
		return value
	}

	if cloned, ok := cloneByMethod(value); ok {
		return cloned
	}

	ty := value.Type()

	switch value.Kind() {
	case reflect.Pointer:
		if value.IsNil() {
			return value
		}

		key := pointerKey{addr: value.Pointer(), typ: ty}
		if cloned, ok := c.seen[key]; ok {
			return cloned
		}

		target := reflect.New(ty.Elem())
		c.seen[key] = target
		target.Elem().Set(c.copy(value.Elem()))
		return target

	case reflect.Interface:
		if value.IsNil() {
			return value
		}

		target := reflect.New(ty).Elem()
		target.Set(c.copy(value.Elem()))
		return target

	case reflect.Map:
		if value.IsNil() {
			return value
		}

		target := reflect.MakeMapWithSize(ty, value.Len())
		iter := value.MapRange()
		for iter.Next() {
			target.SetMapIndex(c.copy(iter.Key()), c.copy(iter.Value()))
		}
		return target

	case reflect.Slice:
		if value.IsNil() {
			return value
		}

		target := reflect.MakeSlice(ty, value.Len(), value.Len())
		for idx := range value.Len() {
			target.Index(idx).Set(c.copy(value.Index(idx)))
		}
		return target

	case reflect.Array:
		target := reflect.New(ty).Elem()
		for idx := range value.Len() {
			target.Index(idx).Set(c.copy(value.Index(idx)))
		}
		return target

	case reflect.Struct:
		target := reflect.New(ty).Elem()
		target.Set(value)

		for idx := range ty.NumField() {
			field := target.Field(idx)
			if !field.CanSet() {
				continue
			}
			field.Set(c.copy(value.Field(idx)))
		}
		return target

	default:
		// scalars, strings, funcs and channels are copied by value
		return value
	}
}

// cloneByMethod copies value through a Clone method returning the same type,
// defined either on the type itself or on its pointer.
func cloneByMethod(value reflect.Value) (reflect.Value, bool) {
	ty := value.Type()
	if ty.Kind() == reflect.Interface {
		// interface methods carry no Func; the dynamic value is handled by copy
		return reflect.Value{}, false
	}

	if method, ok := ty.MethodByName("Clone"); ok && returnsSelf(method.Type, ty) {
		if ty.Kind() == reflect.Pointer && value.IsNil() {
			return value, true
		}
		return method.Func.Call([]reflect.Value{value})[0], true
	}

	ptrType := reflect.PointerTo(ty)
	if method, ok := ptrType.MethodByName("Clone"); ok && returnsSelf(method.Type, ptrType) {
		ptr := reflect.New(ty)
		ptr.Elem().Set(value)

		cloned := method.Func.Call([]reflect.Value{ptr})[0]
		if cloned.IsNil() {
			return reflect.Zero(ty), true
		}
		return cloned.Elem(), true
	}

	return reflect.Value{}, false
}

// returnsSelf reports whether method is func(recv) recv.
func returnsSelf(method reflect.Type, recv reflect.Type) bool {
	return method.NumIn() == 1 && method.NumOut() == 1 && method.Out(0) == recv
}
