package types

import (
	"fmt"
	"strconv"

	"clustore/pkg/primitives"
)

// CreateFieldFromConstant parses a textual constant into a field of type t.
func CreateFieldFromConstant(t Type, constant string) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(constant, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int constant %q: %w", constant, err)
		}
		return NewIntField(v), nil

	case BoolType:
		v, err := strconv.ParseBool(constant)
		if err != nil {
			return nil, fmt.Errorf("invalid bool constant %q: %w", constant, err)
		}
		return NewBoolField(v), nil

	case FloatType:
		v, err := strconv.ParseFloat(constant, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float constant %q: %w", constant, err)
		}
		return NewFloat64Field(v), nil

	case StringType:
		return NewStringField(constant), nil

	default:
		return nil, fmt.Errorf("unsupported field type: %v", t)
	}
}

// CompareFields orders two fields of the same type: negative when a < b,
// zero when equal, positive when a > b.
func CompareFields(a, b Field) (int, error) {
	if a.Type() != b.Type() {
		return 0, fmt.Errorf("cannot order %v against %v", a.Type(), b.Type())
	}

	less, err := a.Compare(primitives.LessThan, b)
	if err != nil {
		return 0, err
	}
	if less {
		return -1, nil
	}
	if a.Equals(b) {
		return 0, nil
	}
	return 1, nil
}
