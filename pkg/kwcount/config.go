package kwcount

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Limits caps the input the pipeline accepts.
type Limits struct {
	MaxKeywords   int `json:"max_keywords"`
	MaxKeywordLen int `json:"max_keyword_len"`
	MaxRecordLen  int `json:"max_record_len"` // bytes, excluding the line terminator
}

// DefaultLimits matches the vocabulary and line caps of the reference data set.
var DefaultLimits = Limits{
	MaxKeywords:   100,
	MaxKeywordLen: 49,
	MaxRecordLen:  999,
}

func (l Limits) withDefaults() Limits {
	if l.MaxKeywords == 0 {
		l.MaxKeywords = DefaultLimits.MaxKeywords
	}
	if l.MaxKeywordLen == 0 {
		l.MaxKeywordLen = DefaultLimits.MaxKeywordLen
	}
	if l.MaxRecordLen == 0 {
		l.MaxRecordLen = DefaultLimits.MaxRecordLen
	}
	return l
}

// TruncationPolicy decides what happens to records longer than MaxRecordLen.
type TruncationPolicy int

const (
	// TruncateRecords silently drops the tail of an oversized record.
	TruncateRecords TruncationPolicy = iota
	// RejectRecords fails the run with ErrRecordTooLong.
	RejectRecords
)

func (p TruncationPolicy) String() string {
	switch p {
	case RejectRecords:
		return "reject"
	default:
		return "truncate"
	}
}

// ParseTruncationPolicy accepts "truncate" or "reject".
func ParseTruncationPolicy(s string) (TruncationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "truncate":
		return TruncateRecords, nil
	case "reject":
		return RejectRecords, nil
	}
	return 0, fmt.Errorf("%w: truncation policy %q", ErrUnknownOption, s)
}

// Framing selects how records are laid out on the wire during scatter.
type Framing int

const (
	// FramingFixed pads every record to MaxRecordLen bytes.
	FramingFixed Framing = iota
	// FramingLengthPrefixed writes a uvarint length before each record.
	FramingLengthPrefixed
)

func (f Framing) String() string {
	switch f {
	case FramingLengthPrefixed:
		return "length"
	default:
		return "fixed"
	}
}

// ParseFraming accepts "fixed" or "length".
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(s) {
	case "", "fixed":
		return FramingFixed, nil
	case "length", "length-prefixed":
		return FramingLengthPrefixed, nil
	}
	return 0, fmt.Errorf("%w: framing %q", ErrUnknownOption, s)
}

// TallyMode selects how scanning threads update the local count vector.
type TallyMode int

const (
	// TallyAtomic has all threads increment one shared vector atomically.
	TallyAtomic TallyMode = iota
	// TallyPrivate gives each thread its own vector, merged at the end.
	TallyPrivate
)

func (m TallyMode) String() string {
	switch m {
	case TallyPrivate:
		return "private"
	default:
		return "atomic"
	}
}

// ParseTallyMode accepts "atomic" or "private".
func ParseTallyMode(s string) (TallyMode, error) {
	switch strings.ToLower(s) {
	case "", "atomic":
		return TallyAtomic, nil
	case "private":
		return TallyPrivate, nil
	}
	return 0, fmt.Errorf("%w: tally mode %q", ErrUnknownOption, s)
}

// DefaultCollectiveTimeout bounds every collective call unless overridden.
const DefaultCollectiveTimeout = 30 * time.Second

// DefaultGrain is the number of records a scanning thread claims at once.
const DefaultGrain = 64

// Config holds run configuration. Zero values select defaults.
type Config struct {
	Limits            Limits
	Ranks             int
	ThreadsPerRank    int
	Grain             int
	CollectiveTimeout time.Duration // negative disables the deadline
	Truncation        TruncationPolicy
	Framing           Framing
	Tally             TallyMode
	Quiet             bool // discard rank logging
}

// WithDefaults returns a copy of c with every zero field resolved.
func (c Config) WithDefaults() Config {
	if c.Ranks == 0 {
		c.Ranks = 1
	}
	if c.ThreadsPerRank == 0 {
		c.ThreadsPerRank = runtime.GOMAXPROCS(0)
	}
	if c.Grain <= 0 {
		c.Grain = DefaultGrain
	}
	if c.CollectiveTimeout == 0 {
		c.CollectiveTimeout = DefaultCollectiveTimeout
	}
	c.Limits = c.Limits.withDefaults()
	return c
}

// Validate checks a defaulted config.
func (c Config) Validate() error {
	if c.Ranks < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRankCount, c.Ranks)
	}
	if c.ThreadsPerRank < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreadCount, c.ThreadsPerRank)
	}
	if c.Limits.MaxKeywords < 1 || c.Limits.MaxKeywordLen < 1 || c.Limits.MaxRecordLen < 1 {
		return fmt.Errorf("%w: %+v", ErrInvalidLimits, c.Limits)
	}
	return nil
}

// Source supplies the inputs. Only the coordinating rank calls it.
type Source interface {
	Keywords(ctx context.Context) ([]string, error)
	Records(ctx context.Context) ([]string, error)
}

// SliceSource is an in-memory Source.
type SliceSource struct {
	KeywordList []string
	RecordList  []string
}

func (s SliceSource) Keywords(context.Context) ([]string, error) {
	return s.KeywordList, nil
}

func (s SliceSource) Records(context.Context) ([]string, error) {
	return s.RecordList, nil
}
