package propbag

import "sync"

// TypeNamer maps a type tag to a human readable name. Implementations must be
// deterministic and total.
type TypeNamer interface {
	NameOf(tag TypeTag) string
}

// TypeNamerFunc adapts a plain function to TypeNamer.
type TypeNamerFunc func(tag TypeTag) string

func (f TypeNamerFunc) NameOf(tag TypeTag) string {
	return f(tag)
}

// GoTypeNamer names types the way the Go toolchain prints them,
// e.g. "int", "[]string" or "propbag.PropertyBag[string]".
var GoTypeNamer TypeNamer = TypeNamerFunc(func(tag TypeTag) string {
	if tag == nil {
		return "<nil>"
	}
	return tag.Type.String()
})

// nameCache memoizes names per tag. It is reset whenever the namer changes.
var nameCache = struct {
	sync.RWMutex
	namer TypeNamer
	names map[TypeTag]string
}{
	namer: GoTypeNamer,
	names: map[TypeTag]string{},
}

// SetTypeNamer replaces the process wide namer used by NameOf and
// Property.TypeName. Passing nil restores GoTypeNamer.
func SetTypeNamer(namer TypeNamer) {
	if namer == nil {
		namer = GoTypeNamer
	}

	nameCache.Lock()
	defer nameCache.Unlock()

	nameCache.namer = namer
	nameCache.names = map[TypeTag]string{}
}

// NameOf returns the display name of tag using the configured TypeNamer.
func NameOf(tag TypeTag) string {
	nameCache.RLock()
	name, ok := nameCache.names[tag]
	nameCache.RUnlock()
	if ok {
		return name
	}

	nameCache.Lock()
	defer nameCache.Unlock()

	if name, ok := nameCache.names[tag]; ok {
		return name
	}

	name = nameCache.namer.NameOf(tag)
	nameCache.names[tag] = name
	return name
}

// NameFor returns the display name of T.
func NameFor[T any]() string {
	return NameOf(TypeOf[T]())
}
