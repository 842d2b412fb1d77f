package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"pkg.jsn.cam/kwcount/cmd/testdata/generator"
)

/*generates a synthetic corpus and a matching keyword file for kwcount*/

var (
	GeneratorName = flag.String("generator", "reports", "Generator to use: "+strings.Join(generator.List(), ", "))
	TotalCount    = flag.Int64("total_count", 0, "Total number of records to generate (0 = generator default)")
	OutputPath    = flag.String("output", "var/corpus.txt", "Output corpus path")
	KeywordPath   = flag.String("keywords", "var/keywords.txt", "Output keyword path (empty to skip)")
	Seed          = flag.Uint64("seed", 1, "Random seed")
	LongEvery     = flag.Int("long_every", 100, "notes: pad every Nth line past the record cap")
	LongLength    = flag.Int("long_length", 999, "notes: record cap to pad past")
	Quiet         = flag.Bool("quiet", false, "Hide the progress bar")
)

func main() {
	flag.Parse()

	generator.SetLongLines(*LongEvery, *LongLength)
	gen, err := generator.Get(*GeneratorName)
	if err != nil {
		log.Fatal(err)
	}
	gen.Init(rand.New(rand.NewPCG(*Seed, *Seed^0x9e3779b97f4a7c15)))

	count := *TotalCount
	if count <= 0 {
		count = gen.DefaultCount()
	}

	if err := writeCorpus(*OutputPath, gen, count, *Quiet); err != nil {
		log.Fatal(err)
	}
	if *KeywordPath != "" {
		if err := writeKeywords(*KeywordPath, gen.Keywords()); err != nil {
			log.Fatal(err)
		}
	}

	log.Printf("[TESTDATA] %s: wrote %d records to %s", gen.Description(), count, *OutputPath)
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func writeCorpus(path string, gen generator.Generator, count int64, quiet bool) error {
	file, err := create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, 1<<20)

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.Default(count, "generating")
	}

	for i := int64(0); i < count; i++ {
		if err := gen.WriteLine(w); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if bar != nil && i%1024 == 0 {
			bar.Set64(i)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func writeKeywords(path string, keywords []string) error {
	file, err := create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString(strings.Join(keywords, "\n") + "\n"); err != nil {
		return err
	}
	return file.Close()
}
