package types

import (
	"io"
	"math"
	"strconv"

	"clustore/pkg/primitives"
)

// IntField is a signed 64-bit value stored as 8 big-endian bytes.
type IntField struct {
	Value int64
}

func NewIntField(v int64) *IntField { return &IntField{Value: v} }

func (f *IntField) Type() Type     { return IntType }
func (f *IntField) String() string { return strconv.FormatInt(f.Value, 10) }

func (f *IntField) Serialize(w io.Writer) error {
	return serializeUint64(w, uint64(f.Value)) // #nosec G115
}

func (f *IntField) Compare(op primitives.Predicate, other Field) (bool, error) {
	o, ok := other.(*IntField)
	if !ok {
		return false, mismatch(f, other)
	}
	return compareOrdered(f.Value, o.Value, op), nil
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	return ok && o.Value == f.Value
}

// Float64Field is an IEEE 754 double. Comparison is exact, so a float
// column has a total order (NaN aside) when used as a key.
type Float64Field struct {
	Value float64
}

func NewFloat64Field(v float64) *Float64Field { return &Float64Field{Value: v} }

func (f *Float64Field) Type() Type     { return FloatType }
func (f *Float64Field) String() string { return strconv.FormatFloat(f.Value, 'f', -1, 64) }

func (f *Float64Field) Serialize(w io.Writer) error {
	return serializeUint64(w, math.Float64bits(f.Value))
}

// Compare accepts an IntField operand and widens it.
func (f *Float64Field) Compare(op primitives.Predicate, other Field) (bool, error) {
	var rhs float64
	switch o := other.(type) {
	case *Float64Field:
		rhs = o.Value
	case *IntField:
		rhs = float64(o.Value)
	default:
		return false, mismatch(f, other)
	}
	return compareOrdered(f.Value, rhs, op), nil
}

func (f *Float64Field) Equals(other Field) bool {
	o, ok := other.(*Float64Field)
	return ok && o.Value == f.Value
}

// BoolField is stored as one byte; false sorts first.
type BoolField struct {
	Value bool
}

func NewBoolField(v bool) *BoolField { return &BoolField{Value: v} }

func (b *BoolField) Type() Type     { return BoolType }
func (b *BoolField) String() string { return strconv.FormatBool(b.Value) }

func (b *BoolField) bit() byte {
	if b.Value {
		return 1
	}
	return 0
}

func (b *BoolField) Serialize(w io.Writer) error {
	_, err := w.Write([]byte{b.bit()})
	return err
}

func (b *BoolField) Compare(op primitives.Predicate, other Field) (bool, error) {
	o, ok := other.(*BoolField)
	if !ok {
		return false, mismatch(b, other)
	}
	return compareOrdered(b.bit(), o.bit(), op), nil
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && o.Value == b.Value
}
