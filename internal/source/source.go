// Package source loads the keyword list and the corpus from line-oriented
// files.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// initialCapacity is the record slice size reserved before reading; the
// slice grows past it as needed.
const initialCapacity = 100000

// ctxCheckEvery is how many lines are read between cancellation checks.
const ctxCheckEvery = 4096

// Files is a kwcount.Source backed by a keyword file and a corpus file.
type Files struct {
	KeywordPath string
	CorpusPath  string
	Limits      kwcount.Limits
	Truncation  kwcount.TruncationPolicy

	truncated int
}

var _ kwcount.Source = (*Files)(nil)

// Keywords reads one keyword per line. Blank lines are skipped.
func (f *Files) Keywords(ctx context.Context) ([]string, error) {
	file, err := os.Open(f.KeywordPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kwcount.ErrKeywordsUnreadable, err)
	}
	defer file.Close()

	keywords, err := ReadKeywords(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", kwcount.ErrKeywordsUnreadable, f.KeywordPath, err)
	}
	return keywords, nil
}

// Records reads one record per line, applying the record cap.
func (f *Files) Records(ctx context.Context) ([]string, error) {
	file, err := os.Open(f.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kwcount.ErrCorpusUnreadable, err)
	}
	defer file.Close()

	records, truncated, err := ReadRecords(ctx, file, f.Limits, f.Truncation)
	if err != nil {
		if errors.Is(err, kwcount.ErrRecordTooLong) {
			return nil, fmt.Errorf("%s: %w", f.CorpusPath, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", kwcount.ErrCorpusUnreadable, f.CorpusPath, err)
	}
	f.truncated = truncated

	return records, nil
}

// Truncated returns how many records lost their tail in the last Records call.
func (f *Files) Truncated() int {
	return f.truncated
}

// ReadKeywords returns the non-blank lines of r with line terminators
// stripped. Caps are enforced by the caller.
func ReadKeywords(ctx context.Context, r io.Reader) ([]string, error) {
	var keywords []string

	scanner := bufio.NewScanner(r)
	for n := 0; scanner.Scan(); n++ {
		if n%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kw := strings.TrimRight(scanner.Text(), "\r")
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
	}

	return keywords, scanner.Err()
}

// ReadRecords returns every line of r as a record. Lines longer than
// lim.MaxRecordLen are truncated, or rejected under kwcount.RejectRecords.
// Lines of any length are accepted; only the kept prefix is buffered.
func ReadRecords(ctx context.Context, r io.Reader, lim kwcount.Limits, policy kwcount.TruncationPolicy) ([]string, int, error) {
	lim = kwcount.Config{Limits: lim}.WithDefaults().Limits

	reader := bufio.NewReaderSize(r, 64*1024)
	records := make([]string, 0, initialCapacity)
	truncated := 0
	var line []byte

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, truncated, ctx.Err()
		}

		line = line[:0]
		size := 0
		for {
			chunk, isPrefix, err := reader.ReadLine()
			if err == io.EOF {
				if size == 0 {
					return records, truncated, nil
				}
				break
			}
			if err != nil {
				return nil, truncated, err
			}

			if room := lim.MaxRecordLen - len(line); room > 0 {
				line = append(line, chunk[:min(room, len(chunk))]...)
			}
			size += len(chunk)
			if !isPrefix {
				break
			}
		}

		if size > lim.MaxRecordLen {
			if policy == kwcount.RejectRecords {
				return nil, truncated, fmt.Errorf("record %d: %w: cap is %d bytes", n, kwcount.ErrRecordTooLong, lim.MaxRecordLen)
			}
			truncated++
		}
		records = append(records, string(line))
	}
}
