// Package rank runs the partition, scan and reduce pipeline on one rank and
// launches a whole run of co-located ranks.
package rank

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"pkg.jsn.cam/kwcount/internal/comm"
	"pkg.jsn.cam/kwcount/internal/counter"
	"pkg.jsn.cam/kwcount/internal/partition"
	"pkg.jsn.cam/kwcount/internal/reduce"
	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Coordinator is the rank that loads inputs and receives the result.
const Coordinator = 0

// Phase is a step of the per-run state machine. Phases only move forward.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseLoaded
	PhaseDistributed
	PhaseScanning
	PhaseReduced
	PhaseEmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseLoaded:
		return "loaded"
	case PhaseDistributed:
		return "distributed"
	case PhaseScanning:
		return "scanning"
	case PhaseReduced:
		return "reduced"
	case PhaseEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Node is one rank's view of a run.
type Node struct {
	comm   comm.Communicator
	src    kwcount.Source
	logger *log.Logger
	runID  string
	cfg    kwcount.Config
	phase  Phase

	// onPhase, when set, is called on every transition before the node
	// does the phase's work.
	onPhase func(Phase)
}

// NewNode creates the node for c's rank. src is only used on the
// coordinator and may be nil elsewhere. cfg must already be defaulted.
func NewNode(c comm.Communicator, cfg kwcount.Config, src kwcount.Source, runID string, logger *log.Logger) *Node {
	return &Node{
		comm:   c,
		src:    src,
		logger: logger,
		runID:  runID,
		cfg:    cfg,
		phase:  PhaseInit,
	}
}

// Phase returns the last phase the node entered.
func (n *Node) Phase() Phase {
	return n.phase
}

func (n *Node) advance(to Phase) error {
	if to <= n.phase {
		return fmt.Errorf("%w: %s -> %s", kwcount.ErrPhaseOrder, n.phase, to)
	}
	n.phase = to
	if n.onPhase != nil {
		n.onPhase(to)
	}
	return nil
}

func (n *Node) isCoordinator() bool {
	return n.comm.Rank() == Coordinator
}

// loaded is what the coordinator holds before distribution.
type loaded struct {
	keywords  []string
	records   []string
	truncated int
}

// Run executes the pipeline. The coordinator returns the result; other
// ranks return nil. Any error has already aborted the other ranks.
func (n *Node) Run(ctx context.Context) (*kwcount.Result, error) {
	rank := n.comm.Rank()
	startedAt := time.Now()

	var in loaded
	if n.isCoordinator() {
		var err error
		in, err = n.load(ctx)
		if err != nil {
			n.comm.Abort(err)
			return nil, err
		}
		if err := n.advance(PhaseLoaded); err != nil {
			return nil, err
		}
		n.logger.Printf("[COORD:%s] Loaded %d keywords and %d records (%d truncated)",
			n.runID, len(in.keywords), len(in.records), in.truncated)
	}

	keywords, mine, parts, err := n.distribute(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := n.advance(PhaseDistributed); err != nil {
		return nil, err
	}
	n.logger.Printf("[RANK:%d] Received %s (%d records, %d keywords)", rank, parts[rank], len(mine), len(keywords))

	// Start every rank's scan clock together.
	if err := n.comm.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("sync before scan: %w", err)
	}

	if err := n.advance(PhaseScanning); err != nil {
		return nil, err
	}

	scanStart := time.Now()
	local, err := counter.New(keywords, counter.Options{
		Threads: n.cfg.ThreadsPerRank,
		Grain:   n.cfg.Grain,
		Tally:   n.cfg.Tally,
	}).Count(ctx, mine)
	scanElapsed := time.Since(scanStart)
	if err != nil {
		n.comm.Abort(err)
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	n.logger.Printf("[RANK:%d] Scanned %d records on %d threads in %v", rank, len(mine), n.cfg.ThreadsPerRank, scanElapsed)

	reduceStart := time.Now()
	global, err := reduce.Global(ctx, n.comm, Coordinator, local, len(keywords))
	if err != nil {
		return nil, err
	}
	slowest, err := reduce.SlowestPhase(ctx, n.comm, Coordinator, scanElapsed)
	if err != nil {
		return nil, err
	}

	if !n.isCoordinator() {
		return nil, n.advance(PhaseEmitted)
	}

	reduceElapsed := time.Since(reduceStart)
	if err := n.advance(PhaseReduced); err != nil {
		return nil, err
	}

	result := &kwcount.Result{
		StartedAt:      startedAt,
		RunID:          n.runID,
		Keywords:       keywords,
		Counts:         global,
		Partitions:     parts,
		TotalRecords:   len(in.records),
		Truncated:      in.truncated,
		Ranks:          n.comm.Size(),
		ThreadsPerRank: n.cfg.ThreadsPerRank,
		ScanElapsed:    slowest,
		ReduceElapsed:  reduceElapsed,
	}
	if err := n.advance(PhaseEmitted); err != nil {
		return nil, err
	}
	n.logger.Printf("[COORD:%s] Reduced %d ranks in %v (slowest scan %v)", n.runID, n.comm.Size(), reduceElapsed, slowest)

	return result, nil
}

// load reads and validates the inputs on the coordinator.
func (n *Node) load(ctx context.Context) (loaded, error) {
	if n.src == nil {
		return loaded{}, kwcount.ErrNoSource
	}

	keywords, err := n.src.Keywords(ctx)
	if err != nil {
		return loaded{}, fmt.Errorf("load keywords: %w", err)
	}
	if err := n.cfg.Limits.ValidateKeywords(keywords); err != nil {
		return loaded{}, fmt.Errorf("load keywords: %w", err)
	}

	records, err := n.src.Records(ctx)
	if err != nil {
		return loaded{}, fmt.Errorf("load corpus: %w", err)
	}

	// The source may hand out memory it still owns.
	records = slices.Clone(records)
	truncated, err := n.cfg.Limits.ClampRecords(records, n.cfg.Truncation)
	if err != nil {
		return loaded{}, fmt.Errorf("load corpus: %w", err)
	}
	if tr, ok := n.src.(interface{ Truncated() int }); ok {
		truncated += tr.Truncated()
	}

	return loaded{
		keywords:  slices.Clone(keywords),
		records:   records,
		truncated: truncated,
	}, nil
}

// distribute broadcasts the keywords and record count, then scatters each
// rank its partition. Every rank derives the partition table itself from
// the broadcast count.
func (n *Node) distribute(ctx context.Context, in loaded) ([]string, []string, []kwcount.Partition, error) {
	lim := n.cfg.Limits

	keywords, err := comm.BroadcastStrings(ctx, n.comm, Coordinator, in.keywords,
		comm.LengthPrefixed{Max: lim.MaxKeywordLen})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("broadcast keywords: %w", err)
	}

	total, err := comm.BroadcastInt(ctx, n.comm, Coordinator, len(in.records))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("broadcast record count: %w", err)
	}

	parts, err := partition.Split(total, n.comm.Size())
	if err != nil {
		n.comm.Abort(err)
		return nil, nil, nil, err
	}

	var perRank [][]string
	if n.isCoordinator() {
		perRank = partition.Slices(in.records, parts)
	}

	mine, err := comm.ScatterRecords(ctx, n.comm, Coordinator, perRank,
		comm.NewCodec(n.cfg.Framing, lim.MaxRecordLen))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scatter records: %w", err)
	}

	if want := parts[n.comm.Rank()].Len(); len(mine) != want {
		err := fmt.Errorf("%w: rank %d received %d records, partition holds %d",
			kwcount.ErrFrameCorrupt, n.comm.Rank(), len(mine), want)
		n.comm.Abort(err)
		return nil, nil, nil, err
	}

	return keywords, mine, parts, nil
}
