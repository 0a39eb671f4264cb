// Package archive persists property bags. Only types registered with a
// Registry can be archived; everything else fails with ErrUnregisteredType.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mesh-intelligence/propbag/pkg/propbag"
)

// Archive errors.
var (
	ErrUnregisteredType      = errors.New("type is not registered for archiving")
	ErrDuplicateRegistration = errors.New("type already registered")
	ErrMalformedArchive      = errors.New("malformed archive")
)

// Codec converts values of one type to and from their JSON form.
type Codec[T any] struct {
	Encode func(v T) (json.RawMessage, error)
	Decode func(raw json.RawMessage) (T, error)
}

// JSONCodec returns the Codec backed by encoding/json.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) (json.RawMessage, error) {
			return json.Marshal(v)
		},
		Decode: func(raw json.RawMessage) (T, error) {
			var v T
			err := json.Unmarshal(raw, &v)
			return v, err
		},
	}
}

// codec is the type-erased form of a Codec bound to a name and tag.
type codec struct {
	name string
	tag  propbag.TypeTag

	encode func(p *propbag.Property) (json.RawMessage, error)
	decode func(raw json.RawMessage, doc string, state propbag.State) (*propbag.Property, error)
	value  func(raw json.RawMessage) (any, error)
}

// Registry is the allow-list of archivable types. Each registered type is
// bound to a unique name that is written into archives in place of the Go
// type. A Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*codec
	byTag  map[propbag.TypeTag]*codec
}

func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]*codec{},
		byTag:  map[propbag.TypeTag]*codec{},
	}
}

// Register binds name to T using the encoding/json codec.
func Register[T any](r *Registry, name string) error {
	return RegisterCodec(r, name, JSONCodec[T]())
}

// RegisterCodec binds name to T using c. Registering a name or a type twice
// fails with ErrDuplicateRegistration.
func RegisterCodec[T any](r *Registry, name string, c Codec[T]) error {
	if name == "" || c.Encode == nil || c.Decode == nil {
		return fmt.Errorf("%w: registering %s needs a name and both codec functions",
			propbag.ErrInvalidArguments, propbag.NameFor[T]())
	}

	entry := &codec{
		name: name,
		tag:  propbag.TypeOf[T](),
		encode: func(p *propbag.Property) (json.RawMessage, error) {
			v, err := propbag.Get[T](p)
			if err != nil {
				return nil, err
			}
			return c.Encode(v)
		},
		decode: func(raw json.RawMessage, doc string, state propbag.State) (*propbag.Property, error) {
			if state > propbag.HasProvidedValue {
				return nil, fmt.Errorf("unknown state %s", state)
			}

			v, err := c.Decode(raw)
			if err != nil {
				return nil, err
			}

			// replay sets until the property reaches the archived state
			p := propbag.PropertyOf(v, doc)
			for p.State() < state {
				if err := propbag.SetValue(p, v); err != nil {
					return nil, err
				}
			}
			if p.State() != state {
				return nil, fmt.Errorf("a %s value cannot be %s", name, state)
			}
			return p, nil
		},
		value: func(raw json.RawMessage) (any, error) {
			return c.Decode(raw)
		},
	}

	// names are rendered after unlocking, the registry may be the active
	// TypeNamer
	r.mu.Lock()
	byName, nameTaken := r.byName[name]
	byTag, tagTaken := r.byTag[entry.tag]
	if !nameTaken && !tagTaken {
		r.byName[name] = entry
		r.byTag[entry.tag] = entry
	}
	r.mu.Unlock()

	switch {
	case nameTaken:
		return fmt.Errorf("%w: name %q is bound to %s",
			ErrDuplicateRegistration, name, propbag.NameOf(byName.tag))
	case tagTaken:
		return fmt.Errorf("%w: %s is registered as %q",
			ErrDuplicateRegistration, propbag.NameOf(entry.tag), byTag.name)
	}
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package initialization.
func MustRegister[T any](r *Registry, name string) {
	if err := Register[T](r, name); err != nil {
		panic(err)
	}
}

// DefaultRegistry returns a new registry holding the common scalar, slice and
// time types, NoneType and string keyed bags. Bags nested inside bags are
// archived recursively with the same registry.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	MustRegister[bool](r, "bool")
	MustRegister[int](r, "int")
	MustRegister[int32](r, "int32")
	MustRegister[int64](r, "int64")
	MustRegister[uint](r, "uint")
	MustRegister[uint64](r, "uint64")
	MustRegister[float32](r, "float32")
	MustRegister[float64](r, "float64")
	MustRegister[string](r, "string")
	MustRegister[[]byte](r, "[]byte")
	MustRegister[[]string](r, "[]string")
	MustRegister[[]int](r, "[]int")
	MustRegister[[]float64](r, "[]float64")
	MustRegister[map[string]string](r, "map[string]string")
	MustRegister[time.Time](r, "time.Time")
	MustRegister[time.Duration](r, "time.Duration")
	MustRegister[propbag.NoneType](r, "none")

	must(RegisterCodec(r, "*bag", Codec[*propbag.Bag]{
		Encode: r.encodeNested,
		Decode: r.decodeNested,
	}))
	must(RegisterCodec(r, "bag", Codec[propbag.Bag]{
		Encode: func(b propbag.Bag) (json.RawMessage, error) {
			return r.encodeNested(&b)
		},
		Decode: func(raw json.RawMessage) (propbag.Bag, error) {
			b, err := r.decodeNested(raw)
			if err != nil || b == nil {
				return propbag.Bag{}, err
			}
			return *b, nil
		},
	}))

	return r
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (r *Registry) encodeNested(b *propbag.Bag) (json.RawMessage, error) {
	if b == nil {
		return json.RawMessage("null"), nil
	}

	a, err := r.Encode(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(a)
}

func (r *Registry) decodeNested(raw json.RawMessage) (*propbag.Bag, error) {
	var a *Archive
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	return r.Decode(a)
}

func (r *Registry) byTagLocked(tag propbag.TypeTag) (*codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byTag[tag]
	return c, ok
}

func (r *Registry) byNameLocked(name string) (*codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[name]
	return c, ok
}

// Name returns the archive name bound to tag.
func (r *Registry) Name(tag propbag.TypeTag) (string, bool) {
	c, ok := r.byTagLocked(tag)
	if !ok {
		return "", false
	}
	return c.name, true
}

// NameOf makes a Registry usable as a propbag.TypeNamer: registered types
// display under their archive name, others under their Go name.
func (r *Registry) NameOf(tag propbag.TypeTag) string {
	if name, ok := r.Name(tag); ok {
		return name
	}
	return propbag.GoTypeNamer.NameOf(tag)
}

// Names returns the registered names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.byName))
}

// ParseValue decodes the JSON text raw as a value of the type registered
// under name.
func (r *Registry) ParseValue(name string, raw []byte) (any, error) {
	c, ok := r.byNameLocked(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredType, name)
	}

	v, err := c.value(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s value: %w", ErrMalformedArchive, name, err)
	}
	return v, nil
}
