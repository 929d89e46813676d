package enums

import "fmt"

// MovementType labels a row in the stock movement log.
type MovementType string

const (
	MovementTypeReserve         MovementType = "reserve"
	MovementTypeRelease         MovementType = "release"
	MovementTypeCommit          MovementType = "commit"
	MovementTypeDirectDecrement MovementType = "direct_decrement"
	MovementTypeStockSet        MovementType = "stock_set"
)

var validMovementTypes = []MovementType{
	MovementTypeReserve,
	MovementTypeRelease,
	MovementTypeCommit,
	MovementTypeDirectDecrement,
	MovementTypeStockSet,
}

// IsValid reports whether the value matches a known movement type.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
