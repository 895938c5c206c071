package iterator

import "clustore/pkg/tuple"

// Visit is called once per tuple by Drain. Returning stop=true ends the walk
// without an error.
type Visit func(t *tuple.Tuple) (stop bool, err error)

// Drain pulls tuples from it until it is exhausted, visit asks to stop, or
// either side fails. Nil tuples are skipped.
func Drain(it TupleIterator, visit Visit) error {
	for {
		more, err := it.HasNext()
		if err != nil || !more {
			return err
		}

		t, err := it.Next()
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}

		if stop, err := visit(t); err != nil || stop {
			return err
		}
	}
}

// ForEach calls fn for every tuple and stops at the first error fn returns.
func ForEach(it TupleIterator, fn func(*tuple.Tuple) error) error {
	return Drain(it, func(t *tuple.Tuple) (bool, error) {
		return false, fn(t)
	})
}

// Filter keeps the tuples for which keep reports true.
func Filter(it TupleIterator, keep func(*tuple.Tuple) (bool, error)) ([]*tuple.Tuple, error) {
	var out []*tuple.Tuple
	err := Drain(it, func(t *tuple.Tuple) (bool, error) {
		ok, err := keep(t)
		if ok {
			out = append(out, t)
		}
		return false, err
	})
	return out, err
}

// Take reads at most n tuples.
func Take(it TupleIterator, n int) ([]*tuple.Tuple, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]*tuple.Tuple, 0, n)
	err := Drain(it, func(t *tuple.Tuple) (bool, error) {
		out = append(out, t)
		return len(out) == n, nil
	})
	return out, err
}

// Count exhausts it and reports how many tuples it produced.
func Count(it TupleIterator) (n int, err error) {
	err = Drain(it, func(*tuple.Tuple) (bool, error) {
		n++
		return false, nil
	})
	return n, err
}

// Collect exhausts it into memory.
func Collect(it TupleIterator) ([]*tuple.Tuple, error) {
	return Filter(it, func(*tuple.Tuple) (bool, error) { return true, nil })
}
