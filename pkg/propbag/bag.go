package propbag

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
)

// PropertyBag maps keys to properties. Keys are kept unique and are listed
// and iterated in ascending order.
//
// The zero PropertyBag is empty, uses RetrievalQuiet and is ready to use.
// A bag is not safe for concurrent use.
type PropertyBag[K cmp.Ordered] struct {
	props  map[K]*Property
	policy RetrievalPolicy
}

// Bag is the string keyed PropertyBag.
type Bag = PropertyBag[string]

// Entry describes one property for bulk construction.
type Entry[K cmp.Ordered] struct {
	Key   K
	Value any
	Doc   string
}

// noneProperty is returned by GetProperty for absent keys. It is shared by
// every bag and rejects mutation.
var noneProperty = &Property{holder: Of(NoneType{}), sealed: true}

// NewPropertyBag returns a bag holding entries. Later duplicates of a key are
// ignored, like AddProperty.
func NewPropertyBag[K cmp.Ordered](entries ...Entry[K]) *PropertyBag[K] {
	b := &PropertyBag[K]{}
	b.AddEntries(entries...)
	return b
}

// NewBag returns a string keyed bag built from key, value pairs.
func NewBag(pairs ...any) (*Bag, error) {
	b := &Bag{}
	if err := b.AddProperties(pairs...); err != nil {
		return nil, err
	}
	return b, nil
}

// NewBagWithDoc returns a string keyed bag built from key, value, doc triples.
func NewBagWithDoc(triples ...any) (*Bag, error) {
	b := &Bag{}
	if err := b.AddPropertiesWithDoc(triples...); err != nil {
		return nil, err
	}
	return b, nil
}

// AddProperty inserts a new property for key. It returns false and leaves the
// bag unchanged if key already exists; use UpdateProperty to replace values.
func (b *PropertyBag[K]) AddProperty(key K, value any, doc ...string) bool {
	if b.Exists(key) {
		return false
	}

	var description string
	if len(doc) > 0 {
		description = doc[0]
	}

	b.insert(key, NewProperty(value, description))
	return true
}

// Insert stores p under key, keeping its state and description. Like
// AddProperty it never overwrites; nil and sealed properties are rejected.
// The bag takes ownership of p.
func (b *PropertyBag[K]) Insert(key K, p *Property) bool {
	if p == nil || p.sealed || b.Exists(key) {
		return false
	}

	b.insert(key, p)
	return true
}

// AddEntries inserts every entry whose key is not yet present.
func (b *PropertyBag[K]) AddEntries(entries ...Entry[K]) {
	for _, entry := range entries {
		b.AddProperty(entry.Key, entry.Value, entry.Doc)
	}
}

// AddProperties inserts key, value pairs. The arguments are validated as a
// whole before anything is inserted: their count must be even and every key
// must be a K. Keys that already exist are skipped.
func (b *PropertyBag[K]) AddProperties(pairs ...any) error {
	entries, err := parseEntries[K](pairs, 2)
	if err != nil {
		return err
	}

	b.AddEntries(entries...)
	return nil
}

// AddPropertiesWithDoc inserts key, value, doc triples, see AddProperties.
// Every doc must be a string.
func (b *PropertyBag[K]) AddPropertiesWithDoc(triples ...any) error {
	entries, err := parseEntries[K](triples, 3)
	if err != nil {
		return err
	}

	b.AddEntries(entries...)
	return nil
}

func parseEntries[K cmp.Ordered](args []any, stride int) ([]Entry[K], error) {
	if len(args)%stride != 0 {
		return nil, fmt.Errorf("%w: got %d arguments, expected groups of %d",
			ErrInvalidArguments, len(args), stride)
	}

	entries := make([]Entry[K], 0, len(args)/stride)
	for idx := 0; idx < len(args); idx += stride {
		key, ok := args[idx].(K)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d is %T, expected a %s key",
				ErrInvalidArguments, idx, args[idx], NameFor[K]())
		}

		entry := Entry[K]{Key: key, Value: args[idx+1]}

		if stride == 3 {
			doc, ok := args[idx+2].(string)
			if !ok {
				return nil, fmt.Errorf("%w: argument %d is %T, expected a string description",
					ErrInvalidArguments, idx+2, args[idx+2])
			}
			entry.Doc = doc
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (b *PropertyBag[K]) insert(key K, p *Property) {
	if b.props == nil {
		b.props = make(map[K]*Property)
	}
	b.props[key] = p
}

// GetProperty returns the property stored under key. For an absent key it
// returns a shared, sealed Undefined property instead of nil.
func (b *PropertyBag[K]) GetProperty(key K) *Property {
	if p, ok := b.props[key]; ok {
		return p
	}
	return noneProperty
}

// FindProperty returns the property stored under key. An absent key yields
// nil, and under RetrievalThrow also a KeyNotFoundError.
func (b *PropertyBag[K]) FindProperty(key K) (*Property, error) {
	if p, ok := b.props[key]; ok {
		return p, nil
	}
	if b.policy == RetrievalThrow {
		return nil, b.keyNotFound(key)
	}
	return nil, nil
}

// UpdateProperty sets the value of an existing property, see Property.Set.
// It returns false if key is absent. A type mismatch is reported according
// to the bag's retrieval policy.
func (b *PropertyBag[K]) UpdateProperty(key K, value any) (bool, error) {
	p, ok := b.props[key]
	if !ok {
		return false, nil
	}

	if err := p.Set(value); err != nil {
		if b.policy == RetrievalThrow {
			return false, fmt.Errorf("property '%v': %w", key, err)
		}
		return false, nil
	}

	return true, nil
}

// RemoveProperty deletes key and reports whether it was present.
func (b *PropertyBag[K]) RemoveProperty(key K) bool {
	if _, ok := b.props[key]; !ok {
		return false
	}

	delete(b.props, key)
	return true
}

// ListProperties returns the keys in ascending order.
func (b *PropertyBag[K]) ListProperties() []K {
	return slices.Sorted(maps.Keys(b.props))
}

// All iterates the properties in ascending key order.
func (b *PropertyBag[K]) All() iter.Seq2[K, *Property] {
	return func(yield func(K, *Property) bool) {
		for _, key := range b.ListProperties() {
			if !yield(key, b.props[key]) {
				return
			}
		}
	}
}

func (b *PropertyBag[K]) Exists(key K) bool {
	_, ok := b.props[key]
	return ok
}

func (b *PropertyBag[K]) Size() int {
	return len(b.props)
}

func (b *PropertyBag[K]) Empty() bool {
	return len(b.props) == 0
}

// SetRetrievalPolicy sets the policy used when GetPropertyValue and
// UpdateProperty are not given one explicitly.
func (b *PropertyBag[K]) SetRetrievalPolicy(policy RetrievalPolicy) {
	b.policy = policy
}

func (b *PropertyBag[K]) RetrievalPolicy() RetrievalPolicy {
	return b.policy
}

// Clone returns a deep copy of b, including nested bags.
func (b *PropertyBag[K]) Clone() *PropertyBag[K] {
	if b == nil {
		return nil
	}

	clone := &PropertyBag[K]{policy: b.policy}
	for key, p := range b.props {
		clone.insert(key, p.Clone())
	}
	return clone
}

// Equal reports whether both bags hold the same keys with equal properties:
// same state, description, type and value. The retrieval policy is ignored.
func (b *PropertyBag[K]) Equal(other *PropertyBag[K]) bool {
	if b == nil || other == nil {
		return b == other
	}

	if len(b.props) != len(other.props) {
		return false
	}

	for key, p := range b.props {
		q, ok := other.props[key]
		if !ok || !p.Equal(q) {
			return false
		}
	}

	return true
}

// Equal reports whether both properties hold the same state, description,
// type and value.
func (p *Property) Equal(other *Property) bool {
	if p.state != other.state || p.description != other.description || !p.SameType(other) {
		return false
	}

	return valuesEqual(reflect.ValueOf(p.Interface()), reflect.ValueOf(other.Interface()))
}

// valuesEqual compares through an Equal(T) bool method when the type defines
// one, falling back to reflect.DeepEqual.
func valuesEqual(x, y reflect.Value) bool {
	// nil interface values
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}

	ty := x.Type()

	if method, ok := ty.MethodByName("Equal"); ok && comparesSelf(method.Type, ty) {
		return method.Func.Call([]reflect.Value{x, y})[0].Bool()
	}

	ptrType := reflect.PointerTo(ty)
	if method, ok := ptrType.MethodByName("Equal"); ok && comparesSelf(method.Type, ptrType) {
		xp, yp := reflect.New(ty), reflect.New(ty)
		xp.Elem().Set(x)
		yp.Elem().Set(y)
		return method.Func.Call([]reflect.Value{xp, yp})[0].Bool()
	}

	return reflect.DeepEqual(x.Interface(), y.Interface())
}

// comparesSelf reports whether method is func(recv, recv) bool.
func comparesSelf(method reflect.Type, recv reflect.Type) bool {
	return method.NumIn() == 2 && method.In(1) == recv &&
		method.NumOut() == 1 && method.Out(0).Kind() == reflect.Bool
}

// GetPropertyValueWith copies the value stored under key into out.
//
// When key is absent or does not hold a T, the result depends on policy:
// RetrievalQuiet returns false and a nil error, RetrievalThrow returns a
// KeyNotFoundError or the type mismatch. In both cases out is left untouched.
func GetPropertyValueWith[T any, K cmp.Ordered](b *PropertyBag[K], key K, out *T, policy RetrievalPolicy) (bool, error) {
	p, ok := b.props[key]
	if !ok {
		if policy == RetrievalThrow {
			return false, b.keyNotFound(key)
		}
		return false, nil
	}

	value, err := Get[T](p)
	if err != nil {
		if policy == RetrievalThrow {
			return false, fmt.Errorf("named '%v': %w", key, err)
		}
		return false, nil
	}

	*out = value
	return true, nil
}

// GetPropertyValue is GetPropertyValueWith using the bag's retrieval policy.
func GetPropertyValue[T any, K cmp.Ordered](b *PropertyBag[K], key K, out *T) (bool, error) {
	return GetPropertyValueWith(b, key, out, b.policy)
}

// GetPropertyValueOr performs a quiet lookup and assigns def to out when the
// lookup fails. The result tells whether the value came from the bag.
func GetPropertyValueOr[T any, K cmp.Ordered](b *PropertyBag[K], key K, out *T, def T) bool {
	found, _ := GetPropertyValueWith(b, key, out, RetrievalQuiet)
	if !found {
		*out = def
	}
	return found
}

// Lookup returns the value stored under key and whether it was present with
// type T.
func Lookup[T any, K cmp.Ordered](b *PropertyBag[K], key K) (T, bool) {
	var value T
	found, _ := GetPropertyValueWith(b, key, &value, RetrievalQuiet)
	return value, found
}

func (b *PropertyBag[K]) keyNotFound(key K) error {
	keys := b.ListProperties()

	available := make([]string, len(keys))
	for idx, k := range keys {
		available[idx] = fmt.Sprint(k)
	}

	return &KeyNotFoundError{Key: fmt.Sprint(key), Available: available}
}
