package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"pkg.jsn.cam/kwcount/internal/history"
	"pkg.jsn.cam/kwcount/internal/rank"
	"pkg.jsn.cam/kwcount/internal/report"
	"pkg.jsn.cam/kwcount/internal/source"
	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

var errUsage = errors.New("usage")

const defaultDB = "var/history.db"

type runFlags struct {
	keywords, corpus string
	out, perf, db    string
	truncation       string
	framing          string
	tally            string
	cfg              kwcount.Config
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.keywords, "keywords", "", "Keyword file, one keyword per line (required)")
	fs.StringVar(&f.corpus, "corpus", "", "Corpus file, one record per line (required)")
	fs.StringVar(&f.out, "out", "var/results.txt", "Result file")
	fs.StringVar(&f.perf, "perf", "var/performance.txt", "Performance log to append to (empty to skip)")
	fs.StringVar(&f.db, "db", defaultDB, "History database (empty to skip)")
	fs.IntVar(&f.cfg.Ranks, "ranks", 1, "Number of ranks")
	fs.IntVar(&f.cfg.ThreadsPerRank, "threads", 0, "Scanning threads per rank (0 = GOMAXPROCS)")
	fs.IntVar(&f.cfg.Limits.MaxKeywords, "max-keywords", kwcount.DefaultLimits.MaxKeywords, "Maximum number of keywords")
	fs.IntVar(&f.cfg.Limits.MaxKeywordLen, "max-keyword-len", kwcount.DefaultLimits.MaxKeywordLen, "Maximum keyword length in bytes")
	fs.IntVar(&f.cfg.Limits.MaxRecordLen, "max-record-len", kwcount.DefaultLimits.MaxRecordLen, "Maximum record length in bytes")
	fs.StringVar(&f.truncation, "truncation", kwcount.TruncateRecords.String(), "Over-long records: truncate or reject")
	fs.StringVar(&f.framing, "framing", kwcount.FramingFixed.String(), "Record framing on scatter: fixed or length-prefixed")
	fs.StringVar(&f.tally, "tally", kwcount.TallyAtomic.String(), "Local tally: atomic or private")
	fs.IntVar(&f.cfg.Grain, "grain", kwcount.DefaultGrain, "Records a thread claims at once")
	fs.DurationVar(&f.cfg.CollectiveTimeout, "timeout", kwcount.DefaultCollectiveTimeout, "Deadline per collective operation (negative disables)")
	fs.BoolVar(&f.cfg.Quiet, "quiet", false, "Suppress rank logging")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if f.keywords == "" || f.corpus == "" {
		fmt.Fprintln(stderr, "run: -keywords and -corpus are required")
		fs.Usage()
		return nil, errUsage
	}

	var err error
	if f.cfg.Truncation, err = kwcount.ParseTruncationPolicy(f.truncation); err != nil {
		return nil, err
	}
	if f.cfg.Framing, err = kwcount.ParseFraming(f.framing); err != nil {
		return nil, err
	}
	if f.cfg.Tally, err = kwcount.ParseTallyMode(f.tally); err != nil {
		return nil, err
	}

	return f, nil
}

func runCmd(args []string, stdout, stderr io.Writer, logger *log.Logger) error {
	f, err := parseRunFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg := f.cfg.WithDefaults()

	// Open history first so a locked or unreadable database fails the run
	// before any output is written.
	var store *history.Store
	if f.db != "" {
		if err := os.MkdirAll(filepath.Dir(f.db), 0755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
		store, err = history.Open(f.db, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src := &source.Files{
		KeywordPath: f.keywords,
		CorpusPath:  f.corpus,
		Limits:      cfg.Limits,
		Truncation:  cfg.Truncation,
	}

	start := time.Now()
	res, err := rank.Run(ctx, cfg, src)
	if err != nil {
		return err
	}
	wall := time.Since(start)

	saved, err := emit(res, cfg, f, store)
	if err != nil {
		return err
	}

	printSummary(stdout, res, f, wall, saved)
	return nil
}

// emit publishes a finished run. The result file only appears once the
// performance line and the history record are written, so a failed run
// leaves no result file.
func emit(res *kwcount.Result, cfg kwcount.Config, f *runFlags, store *history.Store) (history.Record, error) {
	staged, err := report.StageResultFile(f.out, res)
	if err != nil {
		return history.Record{}, err
	}
	defer staged.Discard()

	var perf *report.PerfLog
	if f.perf != "" {
		if perf, err = report.OpenPerformance(f.perf); err != nil {
			return history.Record{}, err
		}
		defer perf.Close()
	}

	var saved history.Record
	if store != nil {
		saved, err = store.Save(history.NewRecord(res, cfg, f.corpus))
		if err != nil {
			return history.Record{}, fmt.Errorf("save run history: %w", err)
		}
	}

	// unwind the history record if anything after it fails
	undo := func(err error) (history.Record, error) {
		if store != nil {
			if derr := store.Delete(saved); derr != nil {
				return history.Record{}, errors.Join(err, fmt.Errorf("remove run #%d from history: %w", saved.Seq, derr))
			}
		}
		return history.Record{}, err
	}

	if perf != nil {
		if err := perf.Append(res); err != nil {
			return undo(err)
		}
		if err := perf.Close(); err != nil {
			return undo(fmt.Errorf("close performance log: %w", err))
		}
	}
	if err := staged.Commit(); err != nil {
		return undo(err)
	}

	return saved, nil
}

func printSummary(w io.Writer, res *kwcount.Result, f *runFlags, wall time.Duration, saved history.Record) {
	corpusSize := "unknown"
	if fi, err := os.Stat(f.corpus); err == nil {
		corpusSize = humanize.Bytes(uint64(fi.Size()))
	}

	fmt.Fprintf(w, "Run %s (%s)\n", res.RunID, res.Label())
	if saved.Seq > 0 {
		fmt.Fprintf(w, "  History:    #%d\n", saved.Seq)
	}
	fmt.Fprintf(w, "  Corpus:     %s records, %s\n", humanize.Comma(int64(res.TotalRecords)), corpusSize)
	if res.Truncated > 0 {
		fmt.Fprintf(w, "  Truncated:  %s records\n", humanize.Comma(int64(res.Truncated)))
	}
	fmt.Fprintf(w, "  Keywords:   %d\n", len(res.Keywords))
	fmt.Fprintf(w, "  Shape:      %d ranks x %d threads\n", res.Ranks, res.ThreadsPerRank)
	fmt.Fprintf(w, "  Scan:       %v (slowest rank)\n", res.ScanElapsed)
	fmt.Fprintf(w, "  Reduce:     %v\n", res.ReduceElapsed)
	fmt.Fprintf(w, "  Wall:       %v\n", wall)
	fmt.Fprintf(w, "  Results:    %s\n", f.out)
}
