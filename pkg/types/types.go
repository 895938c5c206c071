package types

// Type identifies the storage type of a column.
type Type int

const (
	IntType Type = iota
	StringType
	BoolType
	FloatType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case StringType:
		return "STRING_TYPE"
	case BoolType:
		return "BOOL_TYPE"
	case FloatType:
		return "FLOAT_TYPE"
	default:
		return "UNKNOWN_TYPE"
	}
}

// Size returns the fixed serialized size of a value of this type in bytes,
// or 0 for an unknown type.
func (t Type) Size() uint32 {
	switch t {
	case IntType, FloatType:
		return 8
	case BoolType:
		return 1
	case StringType:
		return 4 + StringMaxSize
	default:
		return 0
	}
}

// ParseType maps a short type name ("int", "string", "bool", "float") to a Type.
func ParseType(name string) (Type, bool) {
	switch name {
	case "int", "INT", "INT_TYPE":
		return IntType, true
	case "string", "STRING", "STRING_TYPE":
		return StringType, true
	case "bool", "BOOL", "BOOL_TYPE":
		return BoolType, true
	case "float", "FLOAT", "FLOAT_TYPE":
		return FloatType, true
	default:
		return 0, false
	}
}
