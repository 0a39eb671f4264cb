package propbag

import (
	"reflect"
	"sync"
)

// TypeInfo is the registry record behind a TypeTag. Records are created on
// first use of a type and never change afterwards.
type TypeInfo struct {
	ID   int64
	Type reflect.Type
}

// TypeTag identifies the dynamic type of a stored value. Tags are comparable
// with ==, and two tags are equal iff they describe the same Go type.
// The zero TypeTag is not a valid tag.
type TypeTag = *TypeInfo

func (t *TypeInfo) String() string {
	return NameOf(t)
}

var typeRegistry = struct {
	sync.RWMutex
	byType map[reflect.Type]*TypeInfo
}{
	byType: map[reflect.Type]*TypeInfo{},
}

// TypeOf returns the tag for T. Interface types get their own tag, distinct
// from the tags of the concrete types implementing them.
func TypeOf[T any]() TypeTag {
	return tagFor(reflect.TypeFor[T]())
}

// TypeOfValue returns the tag for the dynamic type of v. An untyped nil maps
// to the NoneType tag.
func TypeOfValue(v any) TypeTag {
	if v == nil {
		return noneTag
	}
	return tagFor(reflect.TypeOf(v))
}

func tagFor(ty reflect.Type) TypeTag {
	typeRegistry.RLock()
	info, ok := typeRegistry.byType[ty]
	typeRegistry.RUnlock()
	if ok {
		return info
	}

	typeRegistry.Lock()
	defer typeRegistry.Unlock()

	// another goroutine may have won the race
	if info, ok := typeRegistry.byType[ty]; ok {
		return info
	}

	info = &TypeInfo{
		ID:   int64(len(typeRegistry.byType) + 1),
		Type: ty,
	}

	typeRegistry.byType[ty] = info
	return info
}

// NoneType marks a property that has no value yet.
type NoneType struct{}

func (NoneType) String() string {
	return "propbag.NoneType"
}

var noneTag = TypeOf[NoneType]()
