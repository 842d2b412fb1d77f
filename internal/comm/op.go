package comm

import (
	"fmt"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Op is an associative, commutative pointwise reduction.
type Op int

const (
	OpSum Op = iota
	OpMax
)

func (o Op) String() string {
	switch o {
	case OpMax:
		return "max"
	default:
		return "sum"
	}
}

func (o Op) combine(acc, in []int64) error {
	if len(in) != len(acc) {
		return fmt.Errorf("%w: length %d, want %d", kwcount.ErrMalformedVector, len(in), len(acc))
	}

	switch o {
	case OpMax:
		for i, v := range in {
			acc[i] = max(acc[i], v)
		}
	default:
		for i, v := range in {
			acc[i] += v
		}
	}

	return nil
}
