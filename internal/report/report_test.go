package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

func testResult() *kwcount.Result {
	return &kwcount.Result{
		Keywords:       []string{"fever", "cough", "chest pain"},
		Counts:         kwcount.CountVector{2, 1, 0},
		Ranks:          3,
		ThreadsPerRank: 4,
		ScanElapsed:    1500 * time.Microsecond,
	}
}

func TestWriteResults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteResults(&buf, testResult()); err != nil {
		t.Fatalf("WriteResults() error: %v", err)
	}

	want := "fever: 2\ncough: 1\nchest pain: 0\n"
	if buf.String() != want {
		t.Errorf("WriteResults() = %q, want %q", buf.String(), want)
	}
}

func TestWriteResultFile_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "outputs", "result_hybrid.txt")
	if err := WriteResultFile(path, testResult()); err != nil {
		t.Fatalf("WriteResultFile() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	defer f.Close()

	keywords, counts, err := ParseResults(f)
	if err != nil {
		t.Fatalf("ParseResults() error: %v", err)
	}
	if strings.Join(keywords, ",") != "fever,cough,chest pain" {
		t.Errorf("keywords = %q", keywords)
	}
	if !counts.Equal(kwcount.CountVector{2, 1, 0}) {
		t.Errorf("counts = %v", counts)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("result directory holds %d entries, want only the result file", len(entries))
	}
}

func TestParseResults_BadCount(t *testing.T) {
	t.Parallel()

	if _, _, err := ParseResults(strings.NewReader("fever: two\n")); err == nil {
		t.Error("ParseResults() should reject a non-numeric count")
	}
}

func TestPerformanceLog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "performance.txt")
	res := testResult()

	if err := AppendPerformance(path, res); err != nil {
		t.Fatalf("AppendPerformance() error: %v", err)
	}
	res.Ranks, res.ThreadsPerRank = 1, 1
	if err := AppendPerformance(path, res); err != nil {
		t.Fatalf("AppendPerformance() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasPrefix(string(data), "Hybrid version time: 0.001500 seconds\t No. of Processes: 3\t No. of Threads: 4\n") {
		t.Errorf("first line = %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	entries, err := ParsePerformance(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParsePerformance() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ParsePerformance() returned %d entries, want 2", len(entries))
	}
	if entries[1].Label != "Serial" || entries[1].Ranks != 1 || entries[1].Threads != 1 {
		t.Errorf("second entry = %+v", entries[1])
	}
	if entries[0].Elapsed != 1500*time.Microsecond {
		t.Errorf("elapsed = %v, want 1.5ms", entries[0].Elapsed)
	}
}

func TestParsePerformance_LegacyProcessorsLine(t *testing.T) {
	t.Parallel()

	log := "Serial version time: 2.500000 seconds\t No. of Processors: 1\t No. of Threads: 1\nnoise\n"
	entries, err := ParsePerformance(strings.NewReader(log))
	if err != nil {
		t.Fatalf("ParsePerformance() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Elapsed != 2500*time.Millisecond {
		t.Errorf("entries = %+v", entries)
	}
}

func TestStageResultFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "results.txt")
	res := &kwcount.Result{Keywords: []string{"fever"}, Counts: kwcount.CountVector{2}}

	discarded, err := StageResultFile(path, res)
	if err != nil {
		t.Fatalf("StageResultFile() error: %v", err)
	}
	discarded.Discard()

	staged, err := StageResultFile(path, res)
	if err != nil {
		t.Fatalf("StageResultFile() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("result visible before Commit")
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	staged.Discard()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(data) != "fever: 2\n" {
		t.Errorf("result = %q, want %q", data, "fever: 2\n")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the result file", len(entries))
	}
}

func TestOpenPerformance_Directory(t *testing.T) {
	t.Parallel()

	if _, err := OpenPerformance(t.TempDir()); err == nil {
		t.Error("OpenPerformance() on a directory should fail")
	}
}
