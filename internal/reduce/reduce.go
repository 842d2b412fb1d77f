// Package reduce folds every rank's finished local count vector into the
// coordinator's global vector.
package reduce

import (
	"context"
	"fmt"
	"time"

	"pkg.jsn.cam/kwcount/internal/comm"
	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Global sums local vectors pointwise at root. Every rank must call it with
// a vector of exactly keywords entries. Root gets the global vector; other
// ranks get nil. A missing or malformed vector fails the whole run.
func Global(ctx context.Context, c comm.Communicator, root int, local kwcount.CountVector, keywords int) (kwcount.CountVector, error) {
	if err := check(local, keywords); err != nil {
		err = fmt.Errorf("rank %d local vector: %w", c.Rank(), err)
		c.Abort(err)
		return nil, err
	}

	out, err := c.Reduce(ctx, root, local, comm.OpSum)
	if err != nil {
		return nil, fmt.Errorf("sum-reduce counts: %w", err)
	}
	if c.Rank() != root {
		return nil, nil
	}

	global := kwcount.CountVector(out)
	if err := check(global, keywords); err != nil {
		return nil, fmt.Errorf("global vector: %w", err)
	}

	return global, nil
}

// SlowestPhase returns, at root, the longest duration any rank reported.
func SlowestPhase(ctx context.Context, c comm.Communicator, root int, d time.Duration) (time.Duration, error) {
	out, err := c.Reduce(ctx, root, []int64{int64(d)}, comm.OpMax)
	if err != nil {
		return 0, fmt.Errorf("max-reduce elapsed: %w", err)
	}
	if c.Rank() != root {
		return 0, nil
	}
	return time.Duration(out[0]), nil
}

func check(v kwcount.CountVector, keywords int) error {
	if len(v) != keywords {
		return fmt.Errorf("%w: length %d, want %d", kwcount.ErrMalformedVector, len(v), keywords)
	}
	for k, n := range v {
		if n < 0 {
			return fmt.Errorf("%w: negative count %d for keyword %d", kwcount.ErrMalformedVector, n, k)
		}
	}
	return nil
}
