package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ParseField reads one serialized field of the given type from r.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	size := fieldType.Size()
	if size == 0 {
		return nil, fmt.Errorf("invalid field type size: %v", fieldType)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	switch fieldType {
	case IntType:
		return NewIntField(int64(binary.BigEndian.Uint64(buf))), nil // #nosec G115

	case FloatType:
		return NewFloat64Field(math.Float64frombits(binary.BigEndian.Uint64(buf))), nil

	case BoolType:
		return NewBoolField(buf[0] != 0), nil

	case StringType:
		return parseStringField(buf)

	default:
		return nil, fmt.Errorf("unsupported field type: %v", fieldType)
	}
}

// parseStringField decodes a length-prefixed, zero-padded string slot.
func parseStringField(buf []byte) (*StringField, error) {
	length := binary.BigEndian.Uint32(buf[:4])
	if length > StringMaxSize {
		return nil, fmt.Errorf("string length %d exceeds maximum %d", length, StringMaxSize)
	}
	return NewStringField(string(buf[4 : 4+length])), nil
}
