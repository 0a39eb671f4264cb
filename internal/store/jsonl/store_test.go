// Tests for the JSONL bag store and its atomic file helpers.
package jsonl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/internal/store/storetest"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir(), archive.DefaultRegistry(), zaptest.NewLogger(t))
		require.NoError(t, err)
		return s
	})
}

func TestFileLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// nothing is written until the first change
	_, err = os.Stat(s.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)

	for _, name := range []string{"b", "a"} {
		_, err := s.Save(ctx, name, storetest.SampleBag(t))
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var first bagJSON
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first.Name)
	assert.NotEmpty(t, first.Revision)

	var a archive.Archive
	require.NoError(t, json.Unmarshal(first.Archive, &a))
	assert.Equal(t, archive.Version, a.Version)

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bag := storetest.SampleBag(t)

	s, err := Open(dir, nil, nil)
	require.NoError(t, err)
	rev, err := s.Save(ctx, "kept", bag)
	require.NoError(t, err)
	_, err = s.Save(ctx, "dropped", bag)
	require.NoError(t, err)
	_, err = s.Delete(ctx, "dropped")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names)

	got, err := s.Load(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, got.Equal(bag))

	info, err := s.Stat(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, rev, info.Revision)
}

func TestOpenSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"name":"good","revision":"r1","updated_at":"2024-01-01T00:00:00Z","archive":{"version":1,"retrieval":"QUIET","entries":[]}}`,
		`{not json`,
		``,
		`{"name":"../bad","revision":"r2","updated_at":"2024-01-01T00:00:00Z","archive":{}}`,
		`[1, 2]`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	s, err := Open(dir, nil, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, names)

	bag, err := s.Load(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, bag.Empty())

	entries := logs.FilterMessage("skipped malformed lines").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["lines"])
}

func TestSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Save(ctx, "first", storetest.SampleBag(t))
	require.NoError(t, err)

	// a directory in place of the file makes the rename fail
	require.NoError(t, os.Remove(s.Path()))
	require.NoError(t, os.Mkdir(s.Path(), 0o755))

	_, err = s.Save(ctx, "second", storetest.SampleBag(t))
	require.Error(t, err)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, names)
}

func TestWriteLinesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	records := []json.RawMessage{
		json.RawMessage(`{"a":1}`),
		json.RawMessage(`{"b":2}`),
	}

	require.NoError(t, writeLines(path, records))

	got, skipped, err := readLines(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, records, got)

	got, skipped, err = readLines(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Empty(t, got)
}
