package tuple

import (
	"fmt"
	"strings"

	"clustore/pkg/types"
)

// TupleDescription describes the schema of a tuple: the type of every field
// and, optionally, its name. Every type has a fixed size, so a schema also
// fixes the on-page size of its rows.
type TupleDescription struct {
	Types      []types.Type
	FieldNames []string // nil when fields are unnamed
}

// NewTupleDesc creates a schema. fieldNames may be nil; otherwise it must
// match fieldTypes in length.
func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDescription, error) {
	if len(fieldTypes) < 1 {
		return nil, fmt.Errorf("must provide at least one field type")
	}

	td := &TupleDescription{Types: append([]types.Type(nil), fieldTypes...)}

	if fieldNames != nil {
		if len(fieldNames) != len(fieldTypes) {
			return nil, fmt.Errorf("field names length (%d) must match field types length (%d)",
				len(fieldNames), len(fieldTypes))
		}
		td.FieldNames = append([]string(nil), fieldNames...)
	}
	return td, nil
}

// ParseSchema builds an unnamed schema from a comma separated list of type
// names such as "int,int,string".
func ParseSchema(schema string) (*TupleDescription, error) {
	var fieldTypes []types.Type
	for _, name := range strings.Split(schema, ",") {
		name = strings.TrimSpace(name)
		t, ok := types.ParseType(name)
		if !ok {
			return nil, fmt.Errorf("unknown type %q in schema %q", name, schema)
		}
		fieldTypes = append(fieldTypes, t)
	}
	return NewTupleDesc(fieldTypes, nil)
}

func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// GetFieldName returns the name of the ith field, or "" for unnamed schemas.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	if td.FieldNames == nil {
		return "", nil
	}
	return td.FieldNames[i], nil
}

func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// GetSize returns the serialized size of one row in bytes.
func (td *TupleDescription) GetSize() uint32 {
	var size uint32
	for _, fieldType := range td.Types {
		size += fieldType.Size()
	}
	return size
}

// Equals compares field types in order. Field names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i, fieldType := range td.Types {
		if fieldType != other.Types[i] {
			return false
		}
	}
	return true
}

// String formats the schema as "Type1(name1),Type2(name2),...".
func (td *TupleDescription) String() string {
	parts := make([]string, 0, len(td.Types))
	for i, fieldType := range td.Types {
		fieldName := "null"
		if td.FieldNames != nil {
			fieldName = td.FieldNames[i]
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", fieldType, fieldName))
	}
	return strings.Join(parts, ",")
}

// FindFieldIndex locates a field by name (case-sensitive).
func (td *TupleDescription) FindFieldIndex(fieldName string) (int, error) {
	for i, name := range td.FieldNames {
		if name == fieldName {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %s not found", fieldName)
}
