package tuple

import (
	"fmt"

	"clustore/pkg/types"
)

// Builder fills a row's fields left to right. The first failure sticks and
// is reported by Build.
type Builder struct {
	row  *Tuple
	next int
	err  error
}

func NewBuilder(td *TupleDescription) *Builder {
	return &Builder{row: NewTuple(td)}
}

func (b *Builder) AddInt(value int64) *Builder {
	return b.AddField(types.NewIntField(value))
}

func (b *Builder) AddString(value string) *Builder {
	return b.AddField(types.NewStringField(value))
}

func (b *Builder) AddFloat(value float64) *Builder {
	return b.AddField(types.NewFloat64Field(value))
}

func (b *Builder) AddBool(value bool) *Builder {
	return b.AddField(types.NewBoolField(value))
}

// AddField sets the next field. The field's type must match the schema.
func (b *Builder) AddField(field types.Field) *Builder {
	if b.err != nil {
		return b
	}
	if field == nil {
		b.err = fmt.Errorf("field %d: nil value", b.next)
		return b
	}
	if err := b.row.SetField(b.next, field); err != nil {
		b.err = fmt.Errorf("field %d: %w", b.next, err)
		return b
	}
	b.next++
	return b
}

// Build returns the row once every field is set.
func (b *Builder) Build() (*Tuple, error) {
	if b.err != nil {
		return nil, b.err
	}
	if n := b.row.TupleDesc.NumFields(); b.next != n {
		return nil, fmt.Errorf("incomplete row: %d of %d fields set", b.next, n)
	}
	return b.row, nil
}

// MustBuild is Build for rows whose fields are known to be valid.
func (b *Builder) MustBuild() *Tuple {
	t, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("tuple builder: %v", err))
	}
	return t
}
