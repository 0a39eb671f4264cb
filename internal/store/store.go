// Package store defines the interface shared by the bag stores and the
// helpers they have in common. The backends live in sub-packages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// Store errors.
var (
	ErrBagNotFound = errors.New("bag not found")
	ErrInvalidName = errors.New("invalid bag name")
	ErrClosed      = errors.New("store is closed")
)

// Store persists string keyed bags under unique names. Implementations are
// safe for concurrent use.
type Store interface {
	// Save creates or replaces the bag stored under name and returns the
	// revision id of the write.
	Save(ctx context.Context, name string, bag *propbag.Bag) (string, error)

	// Load returns the bag stored under name, or ErrBagNotFound.
	Load(ctx context.Context, name string) (*propbag.Bag, error)

	// Stat returns the metadata of the bag stored under name, or
	// ErrBagNotFound.
	Stat(ctx context.Context, name string) (Info, error)

	// Delete removes name and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)

	// List returns the stored names in ascending order.
	List(ctx context.Context) ([]string, error)

	Close() error
}

// Info describes a stored bag.
type Info struct {
	Name      string    `json:"name"`
	Revision  string    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName accepts names of up to 128 letters, digits, dots, dashes and
// underscores, starting with a letter or digit. Names double as file and
// object keys, so nothing else is allowed.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// NewRevision returns a new UUID v7 revision id.
func NewRevision() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// EncodeBag archives bag as compact JSON.
func EncodeBag(reg *archive.Registry, bag *propbag.Bag) ([]byte, error) {
	a, err := reg.Encode(bag)
	if err != nil {
		return nil, err
	}
	return json.Marshal(a)
}

// DecodeBag is the inverse of EncodeBag.
func DecodeBag(reg *archive.Registry, data []byte) (*propbag.Bag, error) {
	var a archive.Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", archive.ErrMalformedArchive, err)
	}
	return reg.Decode(&a)
}
