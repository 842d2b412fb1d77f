package rank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"
	"pkg.jsn.cam/kwcount/internal/comm"
	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Run counts keywords from src across cfg.Ranks co-located ranks, each
// scanning on cfg.ThreadsPerRank threads, and returns the coordinator's
// result. Either every rank finishes or the run fails as a whole.
func Run(ctx context.Context, cfg kwcount.Config, src kwcount.Source) (*kwcount.Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	if cfg.Quiet {
		out = io.Discard
	}
	logger := log.New(out, "", log.LstdFlags)

	runID := uuid.New().String()

	world, err := comm.NewWorld(cfg.Ranks, max(cfg.CollectiveTimeout, 0))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Printf("[COORD:%s] Starting run: %d ranks x %d threads (tally %s, framing %s)",
		runID, cfg.Ranks, cfg.ThreadsPerRank, cfg.Tally, cfg.Framing)

	var (
		wg     sync.WaitGroup
		result *kwcount.Result
		errs   = make([]error, cfg.Ranks)
	)

	for r := range cfg.Ranks {
		c, err := world.Comm(r)
		if err != nil {
			world.Abort(err)
			return nil, err
		}

		var rankSrc kwcount.Source
		if r == Coordinator {
			rankSrc = src
		}
		node := NewNode(c, cfg, rankSrc, runID, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := node.Run(ctx)
			if err != nil {
				errs[r] = err
				world.Abort(err)
				cancel()
				return
			}
			if r == Coordinator {
				result = res
			}
		}()
	}

	wg.Wait()

	if err := rootCause(errs); err != nil {
		logger.Printf("[COORD:%s] Run failed: %v", runID, err)
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("run %s: coordinator produced no result", runID)
	}

	return result, nil
}

// rootCause picks the error that started a failure: the first one that is
// not merely a rank being released by an abort or a cancellation.
func rootCause(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if !errors.Is(err, kwcount.ErrAborted) && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return first
}
