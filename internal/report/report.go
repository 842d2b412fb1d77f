// Package report writes run results and performance log lines.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// WriteResults writes one "<keyword>: <count>" line per keyword, in
// keyword order.
func WriteResults(w io.Writer, res *kwcount.Result) error {
	bw := bufio.NewWriter(w)
	for i, kw := range res.Keywords {
		if _, err := fmt.Fprintf(bw, "%s: %d\n", kw, res.Counts[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteResultFile writes the result file atomically: the file appears
// complete or not at all.
func WriteResultFile(path string, res *kwcount.Result) error {
	staged, err := StageResultFile(path, res)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// StagedResult is a fully written result file that is not yet visible at
// its final path.
type StagedResult struct {
	path string
	tmp  string
}

// StageResultFile writes res next to path. Nothing appears at path until
// Commit; Discard removes the staged copy.
func StageResultFile(path string, res *kwcount.Result) (*StagedResult, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create result directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".result-*")
	if err != nil {
		return nil, fmt.Errorf("create temp result: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteResults(tmp, res); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close results: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("chmod results: %w", err)
	}

	return &StagedResult{path: path, tmp: tmpPath}, nil
}

// Commit moves the staged file to its final path.
func (s *StagedResult) Commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("replace results: %w", err)
	}
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (s *StagedResult) Discard() {
	os.Remove(s.tmp)
}

// PerformanceLine formats the per-run timing line.
func PerformanceLine(label string, elapsed time.Duration, ranks, threads int) string {
	return fmt.Sprintf("%s version time: %.6f seconds\t No. of Processes: %d\t No. of Threads: %d\n",
		label, elapsed.Seconds(), ranks, threads)
}

// AppendPerformance appends res's timing line to the log at path.
func AppendPerformance(path string, res *kwcount.Result) error {
	pl, err := OpenPerformance(path)
	if err != nil {
		return err
	}
	if err := pl.Append(res); err != nil {
		pl.Close()
		return err
	}
	return pl.Close()
}

// PerfLog is an open performance log.
type PerfLog struct {
	f *os.File
}

// OpenPerformance opens (creating if needed) the log at path for appending.
func OpenPerformance(path string) (*PerfLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create performance log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open performance log: %w", err)
	}
	return &PerfLog{f: f}, nil
}

// Append writes res's timing line.
func (p *PerfLog) Append(res *kwcount.Result) error {
	line := PerformanceLine(res.Label(), res.ScanElapsed, res.Ranks, res.ThreadsPerRank)
	if _, err := p.f.WriteString(line); err != nil {
		return fmt.Errorf("append performance log: %w", err)
	}
	return nil
}

func (p *PerfLog) Close() error {
	return p.f.Close()
}

// ParseResults reads a result file back into keywords and counts. Lines
// without a colon are ignored.
func ParseResults(r io.Reader) ([]string, kwcount.CountVector, error) {
	var keywords []string
	var counts kwcount.CountVector

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		i := strings.LastIndex(text, ":")
		if i < 0 {
			continue
		}

		n, err := strconv.ParseInt(strings.TrimSpace(text[i+1:]), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: bad count: %w", line, err)
		}
		keywords = append(keywords, strings.TrimSpace(text[:i]))
		counts = append(counts, n)
	}

	return keywords, counts, scanner.Err()
}

// PerfEntry is one parsed performance log line.
type PerfEntry struct {
	Label   string
	Elapsed time.Duration
	Ranks   int
	Threads int
}

var perfPattern = regexp.MustCompile(`(?i)(\w+) version time: ([0-9.]+) seconds\s+No\. of Process(?:ors|es): (\d+)\s+No\. of Threads: (\d+)`)

// ParsePerformance reads every recognised line of a performance log.
func ParsePerformance(r io.Reader) ([]PerfEntry, error) {
	var entries []PerfEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := perfPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		secs, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad elapsed %q: %w", m[2], err)
		}
		ranks, _ := strconv.Atoi(m[3])
		threads, _ := strconv.Atoi(m[4])

		entries = append(entries, PerfEntry{
			Label:   m[1],
			Elapsed: time.Duration(math.Round(secs * float64(time.Second))),
			Ranks:   ranks,
			Threads: threads,
		})
	}

	return entries, scanner.Err()
}
