package tuple

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"clustore/pkg/types"
)

// Tuple represents a row of data in the database
type Tuple struct {
	TupleDesc *TupleDescription // Schema of this tuple
	fields    []types.Field     // The actual field values
	RecordID  *RecordID         // Where this tuple is stored (nil when not stored)
}

// NewTuple creates a new tuple with the given schema
func NewTuple(td *TupleDescription) *Tuple {
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}
}

func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}

	expectedType, _ := t.TupleDesc.TypeAtIndex(i)
	if field.Type() != expectedType {
		return fmt.Errorf("field type mismatch: expected %v, got %v",
			expectedType, field.Type())
	}

	t.fields[i] = field
	return nil
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// String returns the fields separated by tabs.
func (t *Tuple) String() string {
	parts := make([]string, 0, len(t.fields))
	for _, field := range t.fields {
		if field != nil {
			parts = append(parts, field.String())
		} else {
			parts = append(parts, "null")
		}
	}
	return strings.Join(parts, "\t")
}

// Clone returns a copy of the tuple, including its record id. Fields are
// immutable values and are shared.
func (t *Tuple) Clone() *Tuple {
	newTup := &Tuple{
		TupleDesc: t.TupleDesc,
		fields:    make([]types.Field, len(t.fields)),
	}
	copy(newTup.fields, t.fields)

	if t.RecordID != nil {
		rid := *t.RecordID
		newTup.RecordID = &rid
	}
	return newTup
}

// Equals compares schemas and field values; record ids are ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.TupleDesc.Equals(other.TupleDesc) {
		return false
	}
	for i, f := range t.fields {
		o := other.fields[i]
		if f == nil || o == nil {
			if f != o {
				return false
			}
			continue
		}
		if !f.Equals(o) {
			return false
		}
	}
	return true
}

// Serialize writes every field in schema order. Every field must be set.
func (t *Tuple) Serialize(w io.Writer) error {
	for i, field := range t.fields {
		if field == nil {
			return fmt.Errorf("field %d is not set", i)
		}
		if err := field.Serialize(w); err != nil {
			return fmt.Errorf("failed to serialize field %d: %w", i, err)
		}
	}
	return nil
}

// Bytes returns the serialized tuple, exactly TupleDesc.GetSize() bytes long.
func (t *Tuple) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(t.TupleDesc.GetSize()))
	if err := t.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseTuple reads one tuple of schema td from r.
func ParseTuple(r io.Reader, td *TupleDescription) (*Tuple, error) {
	t := NewTuple(td)
	for i, fieldType := range td.Types {
		field, err := types.ParseField(r, fieldType)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %d: %w", i, err)
		}
		t.fields[i] = field
	}
	return t, nil
}
