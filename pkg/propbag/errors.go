package propbag

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by values, properties and bags.
var (
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrSealedProperty   = errors.New("property is sealed")
)

// TypeMismatchError reports a conversion between two incompatible types.
// It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Op   string
	Have string
	Want string
}

func (e *TypeMismatchError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("could not convert from %s to %s", e.Have, e.Want)
	}
	return fmt.Sprintf("%s: type mismatch, holds %s whereas %s was requested", e.Op, e.Have, e.Want)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// KeyNotFoundError reports a lookup of a key that is not in the bag. Available
// lists the keys present at the time of the lookup.
type KeyNotFoundError struct {
	Key       string
	Available []string
}

func (e *KeyNotFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "named '%s' not found in property bag", e.Key)
	if len(e.Available) == 0 {
		sb.WriteString(", bag is empty")
		return sb.String()
	}

	sb.WriteString(", available properties: ")
	sb.WriteString(strings.Join(e.Available, ", "))
	return sb.String()
}

func (e *KeyNotFoundError) Unwrap() error {
	return ErrKeyNotFound
}

func mismatch(op string, have, want TypeTag) error {
	haveName := "<empty>"
	if have != nil {
		haveName = NameOf(have)
	}

	return &TypeMismatchError{Op: op, Have: haveName, Want: NameOf(want)}
}
