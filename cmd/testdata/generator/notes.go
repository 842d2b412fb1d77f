package generator

import (
	"io"
	"math/rand/v2"
	"strings"
)

// NoteGenerator writes free-text clinical notes in mixed case. Every
// LongEvery-th line is padded past LongLength bytes so truncation can be
// exercised.
type NoteGenerator struct {
	LongEvery  int
	LongLength int
	rand       *rand.Rand
	written    int64
}

var noteSubjects = []string{
	"Patient",
	"patient",
	"The patient",
	"Child",
	"Elderly patient",
}

var noteFindings = []string{
	"reports Fever since yesterday",
	"has a persistent cough",
	"complains of headache and nausea",
	"shows no symptoms",
	"presents with fever and cough",
	"describes chest pain on exertion",
	"has a mild rash on the arm",
	"denies fever, reports fatigue",
}

var noteFiller = []string{
	"vitals stable",
	"follow up in two weeks",
	"history unremarkable",
	"advised rest and fluids",
	"referred for bloodwork",
}

func (g *NoteGenerator) Init(r *rand.Rand) {
	g.rand = r
	g.written = 0
}

func (g *NoteGenerator) WriteLine(w io.Writer) error {
	g.written++

	var b strings.Builder
	b.WriteString(noteSubjects[g.rand.IntN(len(noteSubjects))])
	b.WriteByte(' ')
	b.WriteString(noteFindings[g.rand.IntN(len(noteFindings))])

	long := g.LongEvery > 0 && g.written%int64(g.LongEvery) == 0
	for long && b.Len() <= g.LongLength {
		b.WriteString("; ")
		b.WriteString(noteFiller[g.rand.IntN(len(noteFiller))])
	}
	if long {
		// sits past the record cap
		b.WriteString(" late finding: fever")
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func (g *NoteGenerator) Keywords() []string {
	return []string{"fever", "Fever", "cough", "headache", "rash", "chest pain", "fatigue"}
}

func (g *NoteGenerator) Description() string {
	return "Clinical notes: mixed case free text, some lines past the record cap"
}

func (g *NoteGenerator) DefaultCount() int64 {
	return 5e4 // 50,000 lines
}
