// Package comm lets co-located ranks cooperate through collective
// operations only. Each rank runs in its own goroutine and owns its memory;
// payloads are copied on every send, so no rank can observe another rank's
// buffers.
package comm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// linkDepth is the number of in-flight messages between a pair of ranks.
const linkDepth = 4

// Communicator is the only view a rank has of its peers.
type Communicator interface {
	Rank() int
	Size() int

	// Broadcast delivers root's payload to every rank.
	Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error)
	// Scatter delivers parts[i] to rank i. parts is only read on root.
	Scatter(ctx context.Context, root int, parts [][]byte) ([]byte, error)
	// Reduce combines every rank's vector pointwise with op. Only root
	// receives the result; other ranks get nil.
	Reduce(ctx context.Context, root int, local []int64, op Op) ([]int64, error)
	// Barrier returns once every rank has reached it.
	Barrier(ctx context.Context) error

	// Abort fails the whole run; every blocked or future call returns
	// kwcount.ErrAborted wrapping err.
	Abort(err error)
}

type kind uint8

const (
	kindBroadcast kind = iota + 1
	kindScatter
	kindReduce
	kindBarrier
)

func (k kind) String() string {
	switch k {
	case kindBroadcast:
		return "broadcast"
	case kindScatter:
		return "scatter"
	case kindReduce:
		return "reduce"
	case kindBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

type message struct {
	data []byte
	vec  []int64
	seq  uint64
	from int
	kind kind
}

// World is a fixed group of ranks wired point to point.
type World struct {
	done    chan struct{}
	cause   error
	links   [][]chan message // links[from][to]
	timeout time.Duration
	size    int
	once    sync.Once
}

// NewWorld creates size ranks. A positive timeout bounds every collective
// call; zero or negative waits for as long as ctx allows.
func NewWorld(size int, timeout time.Duration) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", kwcount.ErrInvalidRankCount, size)
	}

	links := make([][]chan message, size)
	for from := range links {
		links[from] = make([]chan message, size)
		for to := range links[from] {
			if from != to {
				links[from][to] = make(chan message, linkDepth)
			}
		}
	}

	return &World{
		done:    make(chan struct{}),
		links:   links,
		timeout: timeout,
		size:    size,
	}, nil
}

// Size returns the number of ranks.
func (w *World) Size() int {
	return w.size
}

// Comm returns rank's endpoint. Each rank must use exactly one.
func (w *World) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= w.size {
		return nil, fmt.Errorf("%w: rank %d of %d", kwcount.ErrRankOutOfRange, rank, w.size)
	}
	return &Comm{world: w, rank: rank}, nil
}

// Abort fails the run. Only the first cause is kept.
func (w *World) Abort(err error) {
	if err == nil {
		err = errors.New("aborted without cause")
	}
	w.once.Do(func() {
		w.cause = err
		close(w.done)
	})
}

// Err returns the abort cause, or nil while the world is healthy.
func (w *World) Err() error {
	select {
	case <-w.done:
		return fmt.Errorf("%w: %w", kwcount.ErrAborted, w.cause)
	default:
		return nil
	}
}

// Comm is one rank's endpoint.
type Comm struct {
	world *World
	rank  int
	seq   uint64
}

var _ Communicator = (*Comm)(nil)

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.world.size }

func (c *Comm) Abort(err error) {
	c.world.Abort(fmt.Errorf("rank %d: %w", c.rank, err))
}

// begin opens a collective call: it bumps the sequence number every rank
// tracks in lockstep and applies the world deadline.
func (c *Comm) begin(ctx context.Context, root int) (context.Context, context.CancelFunc, uint64, error) {
	c.seq++

	if err := c.world.Err(); err != nil {
		return ctx, func() {}, c.seq, err
	}
	if root < 0 || root >= c.world.size {
		err := fmt.Errorf("%w: root %d of %d", kwcount.ErrRankOutOfRange, root, c.world.size)
		c.Abort(err)
		return ctx, func() {}, c.seq, err
	}

	if c.world.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.world.timeout)
		return ctx, cancel, c.seq, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, c.seq, nil
}

// fail turns a context error into a transport error and aborts the world so
// no peer is left waiting on this rank.
func (c *Comm) fail(ctx context.Context, op kind, peer int) error {
	if err := c.world.Err(); err != nil {
		return err
	}

	var err error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s with rank %d", kwcount.ErrCollectiveTimeout, op, peer)
	} else {
		err = fmt.Errorf("%s with rank %d: %w", op, peer, ctx.Err())
	}
	c.Abort(err)

	return err
}

func (c *Comm) send(ctx context.Context, to int, msg message) error {
	msg.from = c.rank

	select {
	case c.world.links[c.rank][to] <- msg:
		return nil
	case <-c.world.done:
		return c.world.Err()
	case <-ctx.Done():
		return c.fail(ctx, msg.kind, to)
	}
}

func (c *Comm) recv(ctx context.Context, from int, op kind, seq uint64) (message, error) {
	select {
	case msg := <-c.world.links[from][c.rank]:
		if msg.kind != op || msg.seq != seq {
			err := fmt.Errorf("%w: rank %d expected %s #%d from rank %d, got %s #%d",
				kwcount.ErrCollectiveMismatch, c.rank, op, seq, from, msg.kind, msg.seq)
			c.world.Abort(err)
			return message{}, err
		}
		return msg, nil
	case <-c.world.done:
		return message{}, c.world.Err()
	case <-ctx.Done():
		return message{}, c.fail(ctx, op, from)
	}
}

// Broadcast implements Communicator.
func (c *Comm) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	ctx, cancel, seq, err := c.begin(ctx, root)
	defer cancel()
	if err != nil {
		return nil, err
	}

	if c.rank != root {
		msg, err := c.recv(ctx, root, kindBroadcast, seq)
		if err != nil {
			return nil, err
		}
		return msg.data, nil
	}

	for to := range c.world.size {
		if to == root {
			continue
		}
		if err := c.send(ctx, to, message{kind: kindBroadcast, seq: seq, data: slices.Clone(payload)}); err != nil {
			return nil, err
		}
	}

	return slices.Clone(payload), nil
}

// Scatter implements Communicator.
func (c *Comm) Scatter(ctx context.Context, root int, parts [][]byte) ([]byte, error) {
	ctx, cancel, seq, err := c.begin(ctx, root)
	defer cancel()
	if err != nil {
		return nil, err
	}

	if c.rank != root {
		msg, err := c.recv(ctx, root, kindScatter, seq)
		if err != nil {
			return nil, err
		}
		return msg.data, nil
	}

	if len(parts) != c.world.size {
		err := fmt.Errorf("%w: got %d slices for %d ranks", kwcount.ErrScatterShape, len(parts), c.world.size)
		c.Abort(err)
		return nil, err
	}

	for to, part := range parts {
		if to == root {
			continue
		}
		if err := c.send(ctx, to, message{kind: kindScatter, seq: seq, data: slices.Clone(part)}); err != nil {
			return nil, err
		}
	}

	return slices.Clone(parts[root]), nil
}

// Reduce implements Communicator.
func (c *Comm) Reduce(ctx context.Context, root int, local []int64, op Op) ([]int64, error) {
	ctx, cancel, seq, err := c.begin(ctx, root)
	defer cancel()
	if err != nil {
		return nil, err
	}

	if c.rank != root {
		if err := c.send(ctx, root, message{kind: kindReduce, seq: seq, vec: slices.Clone(local)}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	acc := slices.Clone(local)
	for from := range c.world.size {
		if from == root {
			continue
		}

		msg, err := c.recv(ctx, from, kindReduce, seq)
		if err != nil {
			return nil, err
		}
		if err := op.combine(acc, msg.vec); err != nil {
			err = fmt.Errorf("reduce from rank %d: %w", from, err)
			c.world.Abort(err)
			return nil, err
		}
	}

	return acc, nil
}

// Barrier implements Communicator. Rank 0 gathers an empty token from every
// rank and then releases them all.
func (c *Comm) Barrier(ctx context.Context) error {
	ctx, cancel, seq, err := c.begin(ctx, 0)
	defer cancel()
	if err != nil {
		return err
	}

	if c.rank != 0 {
		if err := c.send(ctx, 0, message{kind: kindBarrier, seq: seq}); err != nil {
			return err
		}
		_, err := c.recv(ctx, 0, kindBarrier, seq)
		return err
	}

	for from := 1; from < c.world.size; from++ {
		if _, err := c.recv(ctx, from, kindBarrier, seq); err != nil {
			return err
		}
	}
	for to := 1; to < c.world.size; to++ {
		if err := c.send(ctx, to, message{kind: kindBarrier, seq: seq}); err != nil {
			return err
		}
	}

	return nil
}
