package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// The YAML archive carries the same records as the JSON one. Values are
// converted through their JSON form so every Codec works for both formats.

type yamlArchive struct {
	Version   int          `yaml:"version"`
	Retrieval string       `yaml:"retrieval"`
	Entries   []yamlRecord `yaml:"entries"`
}

type yamlRecord struct {
	Key   string `yaml:"key"`
	Type  string `yaml:"type"`
	State string `yaml:"state"`
	Doc   string `yaml:"doc,omitempty"`
	Value any    `yaml:"value"`
}

func marshalYAML(a *Archive) ([]byte, error) {
	out := yamlArchive{
		Version:   a.Version,
		Retrieval: a.Retrieval,
		Entries:   make([]yamlRecord, 0, len(a.Entries)),
	}

	for _, rec := range a.Entries {
		value, err := jsonToPlain(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("converting property '%s': %w", rec.Key, err)
		}

		out.Entries = append(out.Entries, yamlRecord{
			Key:   rec.Key,
			Type:  rec.Type,
			State: rec.State,
			Doc:   rec.Doc,
			Value: value,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalYAML(data []byte) (*Archive, error) {
	var in yamlArchive
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, err
	}

	a := &Archive{
		Version:   in.Version,
		Retrieval: in.Retrieval,
		Entries:   make([]Record, 0, len(in.Entries)),
	}

	for _, rec := range in.Entries {
		raw, err := json.Marshal(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("converting property '%s': %w", rec.Key, err)
		}

		a.Entries = append(a.Entries, Record{
			Key:   rec.Key,
			Type:  rec.Type,
			State: rec.State,
			Doc:   rec.Doc,
			Value: raw,
		})
	}

	return a, nil
}

// jsonToPlain decodes raw into maps, slices and scalars. Numbers keep their
// integer form so large int64 and uint64 values survive the trip.
func jsonToPlain(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return plainNumbers(v), nil
}

func plainNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for key, elem := range v {
			v[key] = plainNumbers(elem)
		}
		return v
	case []any:
		for idx, elem := range v {
			v[idx] = plainNumbers(elem)
		}
		return v
	default:
		return v
	}
}
