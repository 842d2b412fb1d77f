package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"pkg.jsn.cam/kwcount/internal/report"
	"pkg.jsn.cam/kwcount/pkg/kwcount/protocol"
)

func perfCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("perf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "perf: need the performance log path")
		return errUsage
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("open performance log: %w", err)
	}
	defer f.Close()

	entries, err := report.ParsePerformance(f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No performance lines found")
		return nil
	}

	var baseline time.Duration
	for _, e := range entries {
		if e.Label == "Serial" && e.Elapsed > 0 && (baseline == 0 || e.Elapsed < baseline) {
			baseline = e.Elapsed
		}
	}

	fmt.Fprintf(stdout, "%-8s %9s %7s %14s %8s\n", "LABEL", "PROCESSES", "THREADS", "TIME", "SPEEDUP")
	fmt.Fprintln(stdout, "──────────────────────────────────────────────────")
	for _, e := range entries {
		speedup := "-"
		if baseline > 0 && e.Elapsed > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(baseline)/float64(e.Elapsed))
		}
		fmt.Fprintf(stdout, "%-8s %9d %7d %14v %8s\n", e.Label, e.Ranks, e.Threads, e.Elapsed, speedup)
	}
	return nil
}

func versionCmd(stdout io.Writer) error {
	fmt.Fprintf(stdout, "kwcount %s (history schema %s)\n", protocol.Version, protocol.SchemaVersion)
	return nil
}
