package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mesh-intelligence/propbag/pkg/propbag"
)

// Version is written into every archive. Decode rejects any other version.
const Version = 1

// Archive is the serialized form of a string keyed bag. Entries are listed in
// ascending key order.
type Archive struct {
	Version   int      `json:"version"`
	Retrieval string   `json:"retrieval"`
	Entries   []Record `json:"entries"`
}

// Record is one archived property.
type Record struct {
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	State string          `json:"state"`
	Doc   string          `json:"doc,omitempty"`
	Value json.RawMessage `json:"value"`
}

// Format selects the text encoding of an archive.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml, case insensitive.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown archive format %q", propbag.ErrInvalidArguments, s)
	}
}

// Encode archives every property of bag. It fails with ErrUnregisteredType
// on the first property whose type is not registered.
func (r *Registry) Encode(bag *propbag.Bag) (*Archive, error) {
	if bag == nil {
		return nil, fmt.Errorf("%w: nil bag", propbag.ErrInvalidArguments)
	}

	a := &Archive{
		Version:   Version,
		Retrieval: bag.RetrievalPolicy().String(),
		Entries:   make([]Record, 0, bag.Size()),
	}

	for key, p := range bag.All() {
		c, ok := r.byTagLocked(p.Type())
		if !ok {
			return nil, fmt.Errorf("%w: property '%s' holds %s", ErrUnregisteredType, key, p.TypeName())
		}

		raw, err := c.encode(p)
		if err != nil {
			return nil, fmt.Errorf("encoding property '%s': %w", key, err)
		}

		a.Entries = append(a.Entries, Record{
			Key:   key,
			Type:  c.name,
			State: p.State().String(),
			Doc:   p.Description(),
			Value: raw,
		})
	}

	return a, nil
}

// Decode rebuilds a bag from a. Decoding is all or nothing: on error no bag
// is returned.
func (r *Registry) Decode(a *Archive) (*propbag.Bag, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil archive", ErrMalformedArchive)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("%w: version %d, expected %d", ErrMalformedArchive, a.Version, Version)
	}

	policy, err := propbag.ParseRetrievalPolicy(a.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}

	bag := &propbag.Bag{}
	bag.SetRetrievalPolicy(policy)

	for _, rec := range a.Entries {
		c, ok := r.byNameLocked(rec.Type)
		if !ok {
			return nil, fmt.Errorf("%w: property '%s' has type %q", ErrUnregisteredType, rec.Key, rec.Type)
		}

		state, err := propbag.ParseState(rec.State)
		if err != nil {
			return nil, fmt.Errorf("%w: property '%s': %w", ErrMalformedArchive, rec.Key, err)
		}

		raw := rec.Value
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}

		p, err := c.decode(raw, rec.Doc, state)
		if err != nil {
			return nil, fmt.Errorf("%w: property '%s': %w", ErrMalformedArchive, rec.Key, err)
		}

		if !bag.Insert(rec.Key, p) {
			return nil, fmt.Errorf("%w: duplicate property '%s'", ErrMalformedArchive, rec.Key)
		}
	}

	return bag, nil
}

// Marshal encodes bag and renders the archive in format.
func (r *Registry) Marshal(bag *propbag.Bag, format Format) ([]byte, error) {
	a, err := r.Encode(bag)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling archive: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return marshalYAML(a)
	default:
		return nil, fmt.Errorf("%w: unknown archive format %q", propbag.ErrInvalidArguments, format)
	}
}

// Unmarshal parses data in format and decodes the archive it holds.
func (r *Registry) Unmarshal(data []byte, format Format) (*propbag.Bag, error) {
	var (
		a   *Archive
		err error
	)

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &a)
	case FormatYAML:
		a, err = unmarshalYAML(data)
	default:
		return nil, fmt.Errorf("%w: unknown archive format %q", propbag.ErrInvalidArguments, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}

	return r.Decode(a)
}

var defaultRegistry = sync.OnceValue(DefaultRegistry)

// ToString renders bag as an indented JSON archive using the types of
// DefaultRegistry.
func ToString(bag *propbag.Bag) (string, error) {
	data, err := defaultRegistry().Marshal(bag, FormatJSON)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
