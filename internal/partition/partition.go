// Package partition splits a record sequence into contiguous per-rank ranges.
package partition

import (
	"fmt"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// For returns the partition owned by rank when total records are spread
// over ranks. It is a pure function of its arguments, so every rank derives
// the same boundaries on its own. The first total%ranks ranks get one extra
// record; ranks past the end of a short corpus get an empty range.
func For(total, ranks, rank int) (kwcount.Partition, error) {
	if ranks < 1 {
		return kwcount.Partition{}, fmt.Errorf("%w: got %d", kwcount.ErrInvalidRankCount, ranks)
	}
	if rank < 0 || rank >= ranks {
		return kwcount.Partition{}, fmt.Errorf("%w: rank %d of %d", kwcount.ErrRankOutOfRange, rank, ranks)
	}
	if total < 0 {
		total = 0
	}

	base, extra := total/ranks, total%ranks

	start := rank*base + min(rank, extra)
	size := base
	if rank < extra {
		size++
	}

	return kwcount.Partition{Rank: rank, Start: start, End: start + size}, nil
}

// Split returns every rank's partition, in rank order.
func Split(total, ranks int) ([]kwcount.Partition, error) {
	if ranks < 1 {
		return nil, fmt.Errorf("%w: got %d", kwcount.ErrInvalidRankCount, ranks)
	}

	parts := make([]kwcount.Partition, ranks)
	for r := range ranks {
		p, err := For(total, ranks, r)
		if err != nil {
			return nil, err
		}
		parts[r] = p
	}

	return parts, nil
}

// Slices cuts records along parts. The returned slices alias records.
func Slices(records []string, parts []kwcount.Partition) [][]string {
	out := make([][]string, len(parts))
	for i, p := range parts {
		out[i] = records[p.Start:p.End]
	}
	return out
}
