// Package storetest holds the conformance tests every store.Store backend
// runs against.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
)

// Factory opens a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	tests := []struct {
		name string
		run  func(t *testing.T, s store.Store)
	}{
		{name: "save and load", run: testSaveLoad},
		{name: "save replaces", run: testSaveReplaces},
		{name: "missing bag", run: testMissing},
		{name: "delete", run: testDelete},
		{name: "list sorted", run: testList},
		{name: "invalid names", run: testInvalidNames},
		{name: "unregistered type", run: testUnregistered},
		{name: "concurrent saves", run: testConcurrent},
		{name: "closed", run: testClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.run(t, s)
		})
	}
}

// SampleBag returns a bag exercising several states and a nested bag.
func SampleBag(t *testing.T) *propbag.Bag {
	t.Helper()

	inner, err := propbag.NewBag("depth", 1)
	require.NoError(t, err)

	bag, err := propbag.NewBagWithDoc(
		"my_bool", true, "a flag",
		"my_int", 5, "a counter",
		"my_strings", []string{"a", "b"}, "",
		"inner", inner, "nested",
	)
	require.NoError(t, err)

	_, err = bag.UpdateProperty("my_int", 6)
	require.NoError(t, err)
	require.True(t, bag.AddProperty("later", nil))
	bag.SetRetrievalPolicy(propbag.RetrievalThrow)
	return bag
}

func testSaveLoad(t *testing.T, s store.Store) {
	ctx := context.Background()
	bag := SampleBag(t)

	before := time.Now().Add(-time.Second)
	rev, err := s.Save(ctx, "sample", bag)
	require.NoError(t, err)
	assert.NotEmpty(t, rev)

	got, err := s.Load(ctx, "sample")
	require.NoError(t, err)
	assert.True(t, got.Equal(bag))
	assert.Equal(t, propbag.RetrievalThrow, got.RetrievalPolicy())
	assert.True(t, got.GetProperty("my_int").IsModified())

	info, err := s.Stat(ctx, "sample")
	require.NoError(t, err)
	assert.Equal(t, "sample", info.Name)
	assert.Equal(t, rev, info.Revision)
	assert.True(t, info.UpdatedAt.After(before), "updated at %v", info.UpdatedAt)
}

func testSaveReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := propbag.NewBag("v", 1)
	require.NoError(t, err)
	second, err := propbag.NewBag("v", 2, "w", "x")
	require.NoError(t, err)

	rev1, err := s.Save(ctx, "b", first)
	require.NoError(t, err)
	rev2, err := s.Save(ctx, "b", second)
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev2)

	got, err := s.Load(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.Equal(second))

	info, err := s.Stat(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, rev2, info.Revision)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func testMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Load(ctx, "absent")
	assert.ErrorIs(t, err, store.ErrBagNotFound)

	_, err = s.Stat(ctx, "absent")
	assert.ErrorIs(t, err, store.ErrBagNotFound)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Save(ctx, "gone", SampleBag(t))
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Load(ctx, "gone")
	assert.ErrorIs(t, err, store.ErrBagNotFound)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid.dle"} {
		_, err := s.Save(ctx, name, SampleBag(t))
		require.NoError(t, err)
	}

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid.dle", "zeta"}, names)
}

func testInvalidNames(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, name := range []string{"", "../escape", "a/b"} {
		_, err := s.Save(ctx, name, SampleBag(t))
		assert.ErrorIs(t, err, store.ErrInvalidName, name)

		_, err = s.Load(ctx, name)
		assert.ErrorIs(t, err, store.ErrInvalidName, name)

		_, err = s.Delete(ctx, name)
		assert.ErrorIs(t, err, store.ErrInvalidName, name)
	}
}

type opaque struct{ V int }

func testUnregistered(t *testing.T, s store.Store) {
	ctx := context.Background()

	bag, err := propbag.NewBag("opaque", opaque{V: 1})
	require.NoError(t, err)

	_, err = s.Save(ctx, "opaque", bag)
	require.Error(t, err)

	_, err = s.Load(ctx, "opaque")
	assert.ErrorIs(t, err, store.ErrBagNotFound)
}

func testConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	names := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for idx, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bag, err := propbag.NewBag("idx", idx)
			if err != nil {
				errs[idx] = err
				return
			}
			_, errs[idx] = s.Save(ctx, name, bag)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, names, got)

	for idx, name := range names {
		bag, err := s.Load(ctx, name)
		require.NoError(t, err)
		value, ok := propbag.Lookup[int](bag, "idx")
		require.True(t, ok)
		assert.Equal(t, idx, value)
	}
}

func testClosed(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	_, err := s.Save(ctx, "late", SampleBag(t))
	assert.ErrorIs(t, err, store.ErrClosed)

	_, err = s.Load(ctx, "late")
	assert.ErrorIs(t, err, store.ErrClosed)

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, store.ErrClosed)
}
