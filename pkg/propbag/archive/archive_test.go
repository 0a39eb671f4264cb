// Tests for the bag archive: registry, JSON and YAML round trips.
package archive

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/propbag/pkg/propbag"
)

type point struct {
	X, Y int
}

func sampleBag(t *testing.T) *propbag.Bag {
	t.Helper()

	inner, err := propbag.NewBagWithDoc(
		"depth", 2, "nesting depth",
		"tags", []string{"a", "b"}, "",
	)
	require.NoError(t, err)

	bag, err := propbag.NewBagWithDoc(
		"my_bool", true, "a flag",
		"my_int", 5, "a counter",
		"my_int64", int64(math.MaxInt64), "",
		"my_uint64", uint64(math.MaxUint64), "",
		"my_float32", float32(3.14), "",
		"my_float64", 2.5, "",
		"my_string", "true", "looks like a bool",
		"my_bytes", []byte{0, 1, 2}, "",
		"my_map", map[string]string{"k": "v"}, "",
		"my_time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "",
		"my_duration", 90*time.Second, "",
		"my_floats", []float64{0.5, 1.5}, "",
		"inner", inner, "nested bag",
		"inner_value", *inner.Clone(), "nested bag by value",
	)
	require.NoError(t, err)

	_, err = bag.UpdateProperty("my_int", 6)
	require.NoError(t, err)
	require.True(t, bag.AddProperty("later", nil, "not set yet"))

	bag.SetRetrievalPolicy(propbag.RetrievalThrow)
	return bag
}

func TestRoundTrip(t *testing.T) {
	r := DefaultRegistry()

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			bag := sampleBag(t)

			data, err := r.Marshal(bag, format)
			require.NoError(t, err)

			got, err := r.Unmarshal(data, format)
			require.NoError(t, err)

			assert.True(t, got.Equal(bag), "round trip changed the bag:\n%s", data)
			assert.Equal(t, bag.ListProperties(), got.ListProperties())
			assert.Equal(t, propbag.RetrievalThrow, got.RetrievalPolicy())

			assert.True(t, got.GetProperty("my_int").IsModified())
			assert.Equal(t, propbag.Undefined, got.GetProperty("later").State())
			assert.Equal(t, "looks like a bool", got.GetProperty("my_string").Description())

			s, ok := propbag.Lookup[string](got, "my_string")
			require.True(t, ok)
			assert.Equal(t, "true", s)

			inner, ok := propbag.Lookup[*propbag.Bag](got, "inner")
			require.True(t, ok)
			depth, ok := propbag.Lookup[int](inner, "depth")
			require.True(t, ok)
			assert.Equal(t, 2, depth)
		})
	}
}

func TestEncodeRecords(t *testing.T) {
	bag, err := propbag.NewBag("my_bool", true, "my_int", 5)
	require.NoError(t, err)

	data, err := DefaultRegistry().Marshal(bag, FormatJSON)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": 1,
		"retrieval": "QUIET",
		"entries": [
			{"key": "my_bool", "type": "bool", "state": "default", "value": true},
			{"key": "my_int", "type": "int", "state": "default", "value": 5}
		]
	}`, string(data))

	data, err = DefaultRegistry().Marshal(bag, FormatYAML)
	require.NoError(t, err)

	assert.YAMLEq(t, `
version: 1
retrieval: QUIET
entries:
  - {key: my_bool, type: bool, state: default, value: true}
  - {key: my_int, type: int, state: default, value: 5}
`, string(data))
}

func TestEncodeUnregisteredType(t *testing.T) {
	bag, err := propbag.NewBag("ok", 1, "point", point{X: 1, Y: 2})
	require.NoError(t, err)

	_, err = DefaultRegistry().Encode(bag)
	require.ErrorIs(t, err, ErrUnregisteredType)
	assert.Contains(t, err.Error(), "property 'point'")
	assert.Contains(t, err.Error(), "archive.point")

	_, err = ToString(bag)
	assert.ErrorIs(t, err, ErrUnregisteredType)

	_, err = DefaultRegistry().Encode(nil)
	assert.ErrorIs(t, err, propbag.ErrInvalidArguments)
}

func TestRegisterCustomType(t *testing.T) {
	r := DefaultRegistry()
	require.NoError(t, Register[point](r, "point"))

	bag, err := propbag.NewBag("origin", point{}, "target", point{X: 3, Y: 4})
	require.NoError(t, err)

	data, err := r.Marshal(bag, FormatYAML)
	require.NoError(t, err)

	got, err := r.Unmarshal(data, FormatYAML)
	require.NoError(t, err)
	assert.True(t, got.Equal(bag))

	target, ok := propbag.Lookup[point](got, "target")
	require.True(t, ok)
	assert.Equal(t, point{X: 3, Y: 4}, target)
}

func TestRegisterDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[int](r, "int"))

	assert.ErrorIs(t, Register[int64](r, "int"), ErrDuplicateRegistration)
	assert.ErrorIs(t, Register[int](r, "integer"), ErrDuplicateRegistration)
	assert.ErrorIs(t, Register[int64](r, ""), propbag.ErrInvalidArguments)
	assert.ErrorIs(t, RegisterCodec(r, "x", Codec[int64]{}), propbag.ErrInvalidArguments)

	assert.Equal(t, []string{"int"}, r.Names())
	assert.Panics(t, func() { MustRegister[int](r, "int") })
}

func TestCustomCodec(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterCodec(r, "upper", Codec[string]{
		Encode: func(v string) (json.RawMessage, error) {
			return json.Marshal(strings.ToUpper(v))
		},
		Decode: func(raw json.RawMessage) (string, error) {
			var v string
			err := json.Unmarshal(raw, &v)
			return strings.ToLower(v), err
		},
	}))

	bag, err := propbag.NewBag("name", "Mixed")
	require.NoError(t, err)

	a, err := r.Encode(bag)
	require.NoError(t, err)
	require.Len(t, a.Entries, 1)
	assert.JSONEq(t, `"MIXED"`, string(a.Entries[0].Value))

	got, err := r.Decode(a)
	require.NoError(t, err)
	name, _ := propbag.Lookup[string](got, "name")
	assert.Equal(t, "mixed", name)
}

func TestDecodeFailures(t *testing.T) {
	valid := func() *Archive {
		return &Archive{
			Version:   Version,
			Retrieval: "QUIET",
			Entries: []Record{
				{Key: "a", Type: "int", State: "default", Value: json.RawMessage("1")},
				{Key: "b", Type: "string", State: "provided", Value: json.RawMessage(`"x"`)},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(a *Archive)
		wantErr error
	}{
		{name: "version", mutate: func(a *Archive) { a.Version = 7 }, wantErr: ErrMalformedArchive},
		{name: "retrieval", mutate: func(a *Archive) { a.Retrieval = "LOUD" }, wantErr: ErrMalformedArchive},
		{name: "unknown type", mutate: func(a *Archive) { a.Entries[1].Type = "point" }, wantErr: ErrUnregisteredType},
		{name: "unknown state", mutate: func(a *Archive) { a.Entries[1].State = "dirty" }, wantErr: ErrMalformedArchive},
		{name: "bad value", mutate: func(a *Archive) { a.Entries[0].Value = json.RawMessage(`"one"`) }, wantErr: ErrMalformedArchive},
		{name: "undefined value", mutate: func(a *Archive) { a.Entries[0].State = "undefined" }, wantErr: ErrMalformedArchive},
		{name: "duplicate key", mutate: func(a *Archive) { a.Entries[1].Key = "a" }, wantErr: ErrMalformedArchive},
	}

	r := DefaultRegistry()

	got, err := r.Decode(valid())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.ListProperties())
	assert.True(t, got.GetProperty("b").IsModified())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(a)

			bag, err := r.Decode(a)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, bag)
		})
	}

	_, err = r.Decode(nil)
	assert.ErrorIs(t, err, ErrMalformedArchive)

	_, err = r.Unmarshal([]byte("{not json"), FormatJSON)
	assert.ErrorIs(t, err, ErrMalformedArchive)

	_, err = r.Unmarshal([]byte("entries: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestRegistryNames(t *testing.T) {
	r := DefaultRegistry()

	name, ok := r.Name(propbag.TypeOf[*propbag.Bag]())
	require.True(t, ok)
	assert.Equal(t, "*bag", name)

	_, ok = r.Name(propbag.TypeOf[point]())
	assert.False(t, ok)

	assert.Equal(t, "time.Duration", r.NameOf(propbag.TypeOf[time.Duration]()))
	assert.Equal(t, "archive.point", r.NameOf(propbag.TypeOf[point]()))
	assert.Contains(t, r.Names(), "none")
}

func TestRegistryAsTypeNamer(t *testing.T) {
	t.Cleanup(func() { propbag.SetTypeNamer(nil) })

	propbag.SetTypeNamer(DefaultRegistry())
	assert.Equal(t, "none", propbag.NewProperty(nil, "").TypeName())
	assert.Equal(t, "*bag", propbag.NameFor[*propbag.Bag]())

	r := NewRegistry()
	propbag.SetTypeNamer(r)
	require.NoError(t, Register[int8](r, "int8"))
	err := Register[int16](r, "int8")
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.Contains(t, err.Error(), `name "int8" is bound to int8`)
}

func TestParseValue(t *testing.T) {
	r := DefaultRegistry()

	v, err := r.ParseValue("int", []byte("5"))
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = r.ParseValue("[]string", []byte(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	_, err = r.ParseValue("point", []byte("{}"))
	assert.ErrorIs(t, err, ErrUnregisteredType)

	_, err = r.ParseValue("int", []byte("five"))
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, propbag.ErrInvalidArguments)
}

func TestToString(t *testing.T) {
	bag, err := propbag.NewBag("my_bool", true, "my_int", 5)
	require.NoError(t, err)

	s, err := ToString(bag)
	require.NoError(t, err)
	assert.Contains(t, s, `"key": "my_bool"`)
	assert.Less(t, strings.Index(s, "my_bool"), strings.Index(s, "my_int"))
}
