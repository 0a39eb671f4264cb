package propbag

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	assert.Same(t, TypeOf[int](), TypeOf[int]())
	assert.Same(t, TypeOf[int](), TypeOfValue(5))
	assert.NotSame(t, TypeOf[int](), TypeOf[int64]())
	assert.NotSame(t, TypeOf[dummy](), TypeOf[*dummy]())
	assert.Same(t, TypeOf[NoneType](), TypeOfValue(nil))
	assert.Same(t, TypeOf[*Bag](), TypeOf[*PropertyBag[string]]())
}

func TestTypeOfConcurrent(t *testing.T) {
	type fresh struct{ V int }

	var wg sync.WaitGroup
	tags := make([]TypeTag, 16)
	for idx := range tags {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tags[idx] = TypeOf[fresh]()
		}()
	}
	wg.Wait()

	for _, tag := range tags {
		assert.Same(t, tags[0], tag)
	}
}

func TestNameOf(t *testing.T) {
	tests := []struct {
		tag  TypeTag
		want string
	}{
		{tag: TypeOf[int](), want: "int"},
		{tag: TypeOf[[]string](), want: "[]string"},
		{tag: TypeOf[map[string]int](), want: "map[string]int"},
		{tag: TypeOf[dummy](), want: "propbag.dummy"},
		{tag: TypeOf[NoneType](), want: "propbag.NoneType"},
		{tag: TypeOf[*Bag](), want: "*propbag.PropertyBag[string]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NameOf(tt.tag))
			assert.Equal(t, tt.want, tt.tag.String())
		})
	}

	assert.Equal(t, "int", NameFor[int]())
	assert.Equal(t, "<nil>", GoTypeNamer.NameOf(nil))
}

func TestSetTypeNamer(t *testing.T) {
	t.Cleanup(func() { SetTypeNamer(nil) })

	// prime the cache with the default name
	assert.Equal(t, "int", NameFor[int]())

	SetTypeNamer(TypeNamerFunc(func(tag TypeTag) string {
		return strings.ToUpper(tag.Type.String())
	}))
	assert.Equal(t, "INT", NameFor[int]())
	assert.Equal(t, "INT", NewProperty(1, "").TypeName())

	SetTypeNamer(nil)
	assert.Equal(t, "int", NameFor[int]())
}
