package propbag

import "fmt"

// State is the lifecycle state of a Property.
type State uint8

const (
	// Undefined properties hold NoneType and accept a value of any type.
	Undefined State = iota
	// HasDefaultValue properties received their first value.
	HasDefaultValue
	// HasProvidedValue properties were set at least once after their default.
	HasProvidedValue
)

func (s State) String() string {
	switch s {
	case Undefined:
		return "undefined"
	case HasDefaultValue:
		return "default"
	case HasProvidedValue:
		return "provided"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	switch s {
	case "undefined":
		return Undefined, nil
	case "default":
		return HasDefaultValue, nil
	case "provided":
		return HasProvidedValue, nil
	default:
		return Undefined, fmt.Errorf("%w: unknown property state %q", ErrInvalidArguments, s)
	}
}

// next returns the state after a successful set.
func (s State) next() State {
	if s == Undefined {
		return HasDefaultValue
	}
	return HasProvidedValue
}
