package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"pkg.jsn.cam/kwcount/internal/history"
)

func openExisting(path string, logger *log.Logger) (*history.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return history.Open(path, logger)
}

func historyCmd(args []string, stdout, stderr io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", defaultDB, "History database")
	limit := fs.Int("limit", 0, "Show only the most recent N runs (0 = all)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	store, err := openExisting(*db, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return nil
	}

	rows := history.Speedups(records)
	if *limit > 0 && len(rows) > *limit {
		rows = rows[len(rows)-*limit:]
	}

	fmt.Fprintf(stdout, "%-5s %-9s %-8s %5s %7s %10s %14s %8s  %s\n",
		"SEQ", "RUN", "LABEL", "RANKS", "THREADS", "RECORDS", "SCAN", "SPEEDUP", "STARTED")
	fmt.Fprintln(stdout, "──────────────────────────────────────────────────────────────────────────────────────────")
	for _, row := range rows {
		speedup := "-"
		if row.Factor > 0 {
			speedup = fmt.Sprintf("%.2fx", row.Factor)
		}
		fmt.Fprintf(stdout, "%-5d %-9s %-8s %5d %7d %10s %14v %8s  %s\n",
			row.Seq,
			short(row.RunID),
			row.Label,
			row.Ranks,
			row.Threads,
			humanize.Comma(int64(row.TotalRecords)),
			row.ScanElapsed,
			speedup,
			humanize.Time(row.StartedAt))
	}
	return nil
}

func compareCmd(args []string, stdout, stderr io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", defaultDB, "History database")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "compare: need exactly two run references")
		return errUsage
	}

	store, err := openExisting(*db, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := store.Get(fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := store.Get(fs.Arg(1))
	if err != nil {
		return err
	}

	rmse, err := history.RMSE(a, b)
	if err != nil {
		return err
	}
	diff, err := history.Diff(a, b)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "#%d %s (%s) vs #%d %s (%s)\n", a.Seq, short(a.RunID), a.Label, b.Seq, short(b.RunID), b.Label)
	fmt.Fprintf(stdout, "  RMSE:      %.6f\n", rmse)
	if a.Fingerprint != b.Fingerprint {
		fmt.Fprintln(stdout, "  Note:      runs read different inputs")
	}
	if len(diff) == 0 {
		fmt.Fprintln(stdout, "  Counts:    identical")
		return nil
	}

	idx := make(map[string]int, len(a.Keywords))
	for i, kw := range a.Keywords {
		idx[kw] = i
	}
	fmt.Fprintf(stdout, "  Differing: %d keywords\n", len(diff))
	for _, kw := range diff {
		i := idx[kw]
		fmt.Fprintf(stdout, "    %-30s %d vs %d\n", kw, a.Counts[i], b.Counts[i])
	}
	return nil
}
