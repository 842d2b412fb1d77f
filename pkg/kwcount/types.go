package kwcount

import (
	"fmt"
	"time"
)

// CountVector holds one non-negative count per keyword, indexed like the
// keyword sequence it was produced for.
type CountVector []int64

// NewCountVector returns an all-zero vector for n keywords.
func NewCountVector(n int) CountVector {
	return make(CountVector, n)
}

// Add sums other into v pointwise.
func (v CountVector) Add(other CountVector) error {
	if len(other) != len(v) {
		return fmt.Errorf("%w: length %d, want %d", ErrMalformedVector, len(other), len(v))
	}

	for i, n := range other {
		v[i] += n
	}

	return nil
}

// Clone returns a copy of v.
func (v CountVector) Clone() CountVector {
	out := make(CountVector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both vectors hold the same counts.
func (v CountVector) Equal(other CountVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// Partition is the half-open record range [Start, End) owned by one rank.
type Partition struct {
	Rank  int `json:"rank"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of records in the partition.
func (p Partition) Len() int {
	return p.End - p.Start
}

func (p Partition) String() string {
	return fmt.Sprintf("rank %d [%d,%d)", p.Rank, p.Start, p.End)
}

// Result is what the coordinating rank hands to the emitter.
type Result struct {
	StartedAt      time.Time     `json:"started_at"`
	RunID          string        `json:"run_id"`
	Keywords       []string      `json:"keywords"`
	Counts         CountVector   `json:"counts"`
	Partitions     []Partition   `json:"partitions"`
	TotalRecords   int           `json:"total_records"`
	Truncated      int           `json:"truncated"`
	Ranks          int           `json:"ranks"`
	ThreadsPerRank int           `json:"threads_per_rank"`
	ScanElapsed    time.Duration `json:"scan_elapsed"`
	ReduceElapsed  time.Duration `json:"reduce_elapsed"`
}

// Count returns the global count for keyword, or false if it was not
// part of the run.
func (r *Result) Count(keyword string) (int64, bool) {
	for i, kw := range r.Keywords {
		if kw == keyword {
			return r.Counts[i], true
		}
	}
	return 0, false
}

// Label names the execution shape the way the performance log does.
func (r *Result) Label() string {
	return ShapeLabel(r.Ranks, r.ThreadsPerRank)
}

// ShapeLabel classifies a ranks x threads configuration.
func ShapeLabel(ranks, threads int) string {
	switch {
	case ranks <= 1 && threads <= 1:
		return "Serial"
	case ranks <= 1:
		return "OpenMP"
	case threads <= 1:
		return "MPI"
	default:
		return "Hybrid"
	}
}
