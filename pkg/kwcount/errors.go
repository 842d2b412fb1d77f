package kwcount

import "errors"

// Sentinel errors for common error conditions
var (
	// Startup errors
	ErrKeywordsUnreadable = errors.New("keyword source unreadable")
	ErrCorpusUnreadable   = errors.New("corpus source unreadable")
	ErrNoKeywords         = errors.New("no keywords")
	ErrNoSource           = errors.New("coordinator has no source")

	// Configuration errors
	ErrInvalidRankCount   = errors.New("rank count must be at least 1")
	ErrInvalidThreadCount = errors.New("thread count must be at least 1")
	ErrInvalidLimits      = errors.New("invalid limits")
	ErrUnknownOption      = errors.New("unknown option")

	// Capacity / input validation errors
	ErrTooManyKeywords  = errors.New("too many keywords")
	ErrKeywordTooLong   = errors.New("keyword too long")
	ErrDuplicateKeyword = errors.New("duplicate keyword")
	ErrRecordTooLong    = errors.New("record too long")

	// Transport errors
	ErrCollectiveTimeout  = errors.New("collective operation timed out")
	ErrAborted            = errors.New("run aborted")
	ErrCollectiveMismatch = errors.New("collective call mismatch")
	ErrRankOutOfRange     = errors.New("rank out of range")
	ErrScatterShape       = errors.New("scatter needs one slice per rank")
	ErrFrameCorrupt       = errors.New("corrupt frame")

	// Reduction errors
	ErrMalformedVector = errors.New("malformed count vector")

	// Pipeline errors
	ErrPhaseOrder = errors.New("pipeline phase out of order")

	// History errors
	ErrRunNotFound        = errors.New("run not found")
	ErrIncompatibleSchema = errors.New("incompatible history schema")
	ErrKeywordSetMismatch = errors.New("runs counted different keywords")
)
