package types

import (
	"cmp"
	"encoding/binary"
	"io"

	"clustore/pkg/primitives"
)

// compareOrdered applies op to a and b.
func compareOrdered[T cmp.Ordered](a, b T, op primitives.Predicate) bool {
	c := cmp.Compare(a, b)
	switch op {
	case primitives.Equals:
		return c == 0
	case primitives.NotEqual:
		return c != 0
	case primitives.LessThan:
		return c < 0
	case primitives.LessThanOrEqual:
		return c <= 0
	case primitives.GreaterThan:
		return c > 0
	case primitives.GreaterThanOrEqual:
		return c >= 0
	}
	return false
}

// serializeUint64 writes v big-endian.
func serializeUint64(w io.Writer, v uint64) error {
	_, err := w.Write(toBytes64(v))
	return err
}

func toBytes64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}
