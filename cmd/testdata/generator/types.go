package generator

import (
	"io"
	"math/rand/v2"
)

// Generator produces synthetic corpus records.
type Generator interface {
	// Init initializes the generator with a per-instance random source
	Init(r *rand.Rand)

	// WriteLine writes a single record, newline terminated
	WriteLine(w io.Writer) error

	// Keywords returns a keyword list that matches the generated corpus
	Keywords() []string

	// Description returns a human-readable description of the data format
	Description() string

	// DefaultCount returns the suggested default number of lines to generate
	DefaultCount() int64
}
