package counter

import (
	"sync"
	"sync/atomic"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Sink records keyword hits for one scanning thread.
type Sink interface {
	Hit(keyword int)
}

// Tally accumulates hits from many threads into one count vector.
type Tally interface {
	// Sink returns the recorder a thread should use. It may be shared.
	Sink() Sink
	// Counts returns the finished vector. Only valid once every sink has
	// stopped recording.
	Counts() kwcount.CountVector
}

// NewTally returns the tally for mode over n keywords.
func NewTally(mode kwcount.TallyMode, n int) Tally {
	if mode == kwcount.TallyPrivate {
		return &PrivateTally{n: n}
	}
	return NewAtomicTally(n)
}

// AtomicTally is one vector shared by every thread; each hit is an atomic
// increment.
type AtomicTally struct {
	counts []atomic.Int64
}

// NewAtomicTally returns a zeroed shared vector.
func NewAtomicTally(n int) *AtomicTally {
	return &AtomicTally{counts: make([]atomic.Int64, n)}
}

func (a *AtomicTally) Sink() Sink { return a }

func (a *AtomicTally) Hit(keyword int) {
	a.counts[keyword].Add(1)
}

func (a *AtomicTally) Counts() kwcount.CountVector {
	out := kwcount.NewCountVector(len(a.counts))
	for i := range a.counts {
		out[i] = a.counts[i].Load()
	}
	return out
}

// PrivateTally hands each thread its own vector and sums them at the end.
type PrivateTally struct {
	sinks []*privateSink
	n     int
	mu    sync.Mutex
}

type privateSink struct {
	counts kwcount.CountVector
}

func (p *privateSink) Hit(keyword int) {
	p.counts[keyword]++
}

func (p *PrivateTally) Sink() Sink {
	s := &privateSink{counts: kwcount.NewCountVector(p.n)}

	p.mu.Lock()
	p.sinks = append(p.sinks, s)
	p.mu.Unlock()

	return s
}

func (p *PrivateTally) Counts() kwcount.CountVector {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := kwcount.NewCountVector(p.n)
	for _, s := range p.sinks {
		// lengths always match: every sink was sized from p.n
		_ = out.Add(s.counts)
	}
	return out
}
