package history

import (
	"fmt"
	"math"
	"slices"
	"time"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Speedup relates a run to the fastest single-rank, single-thread run over
// the same inputs.
type Speedup struct {
	Record
	Baseline time.Duration // zero when no serial run exists
	Factor   float64
}

// Speedups computes a Speedup for every record.
func Speedups(records []Record) []Speedup {
	baselines := make(map[string]time.Duration)
	for _, rec := range records {
		if rec.Ranks != 1 || rec.Threads != 1 || rec.ScanElapsed <= 0 {
			continue
		}
		if best, ok := baselines[rec.Fingerprint]; !ok || rec.ScanElapsed < best {
			baselines[rec.Fingerprint] = rec.ScanElapsed
		}
	}

	out := make([]Speedup, len(records))
	for i, rec := range records {
		out[i] = Speedup{Record: rec}
		base, ok := baselines[rec.Fingerprint]
		if !ok || rec.ScanElapsed <= 0 {
			continue
		}
		out[i].Baseline = base
		out[i].Factor = float64(base) / float64(rec.ScanElapsed)
	}
	return out
}

// RMSE returns the root mean square difference between two runs' counts.
// Both runs must have counted the same keywords in the same order.
func RMSE(a, b Record) (float64, error) {
	if !slices.Equal(a.Keywords, b.Keywords) || len(a.Counts) != len(b.Counts) {
		return 0, fmt.Errorf("%w: %s and %s", kwcount.ErrKeywordSetMismatch, a.RunID, b.RunID)
	}
	if len(a.Counts) == 0 {
		return 0, nil
	}

	var sum float64
	for i := range a.Counts {
		d := float64(a.Counts[i] - b.Counts[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a.Counts))), nil
}

// Diff lists the keywords whose counts differ between two runs.
func Diff(a, b Record) ([]string, error) {
	if _, err := RMSE(a, b); err != nil {
		return nil, err
	}

	var out []string
	for i, kw := range a.Keywords {
		if a.Counts[i] != b.Counts[i] {
			out = append(out, kw)
		}
	}
	return out, nil
}
