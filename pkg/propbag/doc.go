// Package propbag implements a heterogeneous property store: a bag that maps
// keys to values of unrelated types, checked against the requested type at
// access time.
//
// The package is built in three layers. AnyValue owns a single value of any
// type together with its TypeTag. Property adds a description and a
// lifecycle State (Undefined, HasDefaultValue, HasProvidedValue). PropertyBag
// maps ordered keys to properties and decides, through its RetrievalPolicy,
// whether failed lookups are reported quietly or as errors.
//
//	bag, _ := propbag.NewBag("my_bool", true, "my_int", 5)
//
//	var n int
//	if ok, _ := propbag.GetPropertyValue(bag, "my_int", &n); ok {
//		fmt.Println(n) // 5
//	}
//
// Copies are deep: cloning a bag clones every property, and bags stored as
// property values inside other bags are cloned recursively.
//
// Persisting bags is the job of package archive, which only handles types
// registered with it up front.
package propbag
