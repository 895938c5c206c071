package types

import (
	"encoding/binary"
	"io"
	"strings"

	"clustore/pkg/primitives"
)

// StringMaxSize is the number of payload bytes reserved for every string
// value. Longer values are truncated.
const (
	StringMaxSize = 256
)

// StringField represents a string stored in a fixed-width slot:
// a 4-byte big-endian length followed by StringMaxSize bytes of
// zero-padded payload.
type StringField struct {
	Value string
}

// NewStringField creates a StringField, truncating value to StringMaxSize bytes.
func NewStringField(value string) *StringField {
	if len(value) > StringMaxSize {
		value = value[:StringMaxSize]
	}
	return &StringField{Value: value}
}

// Compare performs a lexicographic comparison using the given predicate.
func (s *StringField) Compare(op primitives.Predicate, other Field) (bool, error) {
	o, ok := other.(*StringField)
	if !ok {
		return false, mismatch(s, other)
	}
	return compareOrdered(strings.Compare(s.Value, o.Value), 0, op), nil
}

// Serialize writes the length, the string bytes and padding up to StringMaxSize.
func (s *StringField) Serialize(w io.Writer) error {
	length := min(len(s.Value), StringMaxSize)

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(length)) // #nosec G115

	if _, err := w.Write(lengthBytes); err != nil {
		return err
	}

	if _, err := w.Write([]byte(s.Value[:length])); err != nil {
		return err
	}

	padding := make([]byte, StringMaxSize-length)
	_, err := w.Write(padding)
	return err
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

func (s *StringField) Equals(other Field) bool {
	otherStringField, ok := other.(*StringField)
	if !ok {
		return false
	}
	return s.Value == otherStringField.Value
}
