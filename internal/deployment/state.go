package deployment

import "fmt"

type State int

const (
	StateBuilding State = iota
	StateSealed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "BUILDING"
	case StateSealed:
		return "SEALED"
	default:
		return "UNKNOWN"
	}
}

// ValidateTransition enforces Building -> Sealed. Sealing twice is allowed
// (no-op); nothing leaves Sealed.
func ValidateTransition(from, to State) error {
	validTransitions := map[State][]State{
		StateBuilding: {StateSealed},
		StateSealed:   {StateSealed},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}
