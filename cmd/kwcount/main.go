package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

const usage = `kwcount counts how many corpus records contain each keyword.

Usage:
  kwcount run -keywords FILE -corpus FILE [flags]
  kwcount history [-db FILE] [-limit N]
  kwcount compare [-db FILE] RUN_A RUN_B
  kwcount perf LOG
  kwcount version

Runs are referenced by sequence number, run ID or a unique run ID prefix.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	logger := log.New(stderr, "", log.LstdFlags)

	var err error
	switch args[0] {
	case "run":
		err = runCmd(args[1:], stdout, stderr, logger)
	case "history":
		err = historyCmd(args[1:], stdout, stderr, logger)
	case "compare":
		err = compareCmd(args[1:], stdout, stderr, logger)
	case "perf":
		err = perfCmd(args[1:], stdout, stderr)
	case "version":
		err = versionCmd(stdout)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// short trims a run ID for tables.
func short(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
