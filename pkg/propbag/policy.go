package propbag

import (
	"fmt"
	"strings"
)

// RetrievalPolicy selects how a bag reports a failed lookup.
type RetrievalPolicy uint8

const (
	// RetrievalQuiet reports failures through the boolean result only.
	RetrievalQuiet RetrievalPolicy = iota
	// RetrievalThrow reports failures as errors.
	RetrievalThrow
)

func (r RetrievalPolicy) String() string {
	switch r {
	case RetrievalQuiet:
		return "QUIET"
	case RetrievalThrow:
		return "THROW"
	default:
		return fmt.Sprintf("RetrievalPolicy(%d)", uint8(r))
	}
}

// ParseRetrievalPolicy accepts the names printed by String, case insensitive.
func ParseRetrievalPolicy(s string) (RetrievalPolicy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QUIET", "":
		return RetrievalQuiet, nil
	case "THROW":
		return RetrievalThrow, nil
	default:
		return RetrievalQuiet, fmt.Errorf("%w: unknown retrieval policy %q", ErrInvalidArguments, s)
	}
}
