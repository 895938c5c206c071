package types

import (
	"fmt"
	"io"

	"clustore/pkg/primitives"
)

// Field is a single typed column value. Every field type has a fixed
// serialized size, given by Type().Size(), so rows pack into fixed slots.
type Field interface {
	Serialize(w io.Writer) error
	Compare(op primitives.Predicate, other Field) (bool, error)
	Equals(other Field) bool
	Type() Type
	String() string
}

func mismatch(self Field, other Field) error {
	return fmt.Errorf("cannot compare %v with %T", self.Type(), other)
}
