// Package counter scans one rank's records for keywords using a pool of
// threads that share the rank's memory.
package counter

import (
	"context"
	"fmt"
	"strings"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Options tunes a Counter.
type Options struct {
	Threads int
	Grain   int
	Tally   kwcount.TallyMode
}

// Counter counts, per keyword, how many records contain it.
type Counter struct {
	keywords []string
	pool     *Pool
	mode     kwcount.TallyMode
}

// New returns a counter for keywords. The keyword slice must not change
// while the counter is in use.
func New(keywords []string, opts Options) *Counter {
	grain := opts.Grain
	if grain <= 0 {
		grain = kwcount.DefaultGrain
	}
	return &Counter{
		keywords: keywords,
		pool:     NewPool(opts.Threads, grain),
		mode:     opts.Tally,
	}
}

// Count scans records and returns the local count vector. A record adds at
// most one to a keyword no matter how often the keyword occurs in it.
// Matching is a case-sensitive substring test with no word boundaries.
func (c *Counter) Count(ctx context.Context, records []string) (kwcount.CountVector, error) {
	tally := NewTally(c.mode, len(c.keywords))

	err := c.pool.Run(ctx, len(records), func() func(int) {
		sink := tally.Sink()
		return func(i int) {
			Match(records[i], c.keywords, sink)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	return tally.Counts(), nil
}

// Match records one hit in sink for every keyword present in record.
func Match(record string, keywords []string, sink Sink) {
	for k, kw := range keywords {
		if strings.Contains(record, kw) {
			sink.Hit(k)
		}
	}
}
