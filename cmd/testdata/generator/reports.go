package generator

import (
	"io"
	"math/rand/v2"
	"strings"
)

// ReportGenerator writes medical report records in the form
// "<disease> <symptom_1> ... <symptom_5>", all lowercase.
type ReportGenerator struct {
	SymptomsPerReport int
	rand              *rand.Rand
	linePool          [][]byte
}

var diseases = []string{
	"fungal infection",
	"allergy",
	"gerd",
	"chronic cholestasis",
	"drug reaction",
	"peptic ulcer disease",
	"diabetes",
	"gastroenteritis",
	"bronchial asthma",
	"hypertension",
	"migraine",
	"malaria",
	"chicken pox",
	"dengue",
	"typhoid",
	"hepatitis a",
	"tuberculosis",
	"common cold",
	"pneumonia",
	"jaundice",
}

var symptoms = []string{
	"itching",
	"skin_rash",
	"nodal_skin_eruptions",
	"continuous_sneezing",
	"shivering",
	"chills",
	"joint_pain",
	"stomach_pain",
	"acidity",
	"vomiting",
	"fatigue",
	"weight_loss",
	"restlessness",
	"cough",
	"high_fever",
	"breathlessness",
	"sweating",
	"headache",
	"yellowish_skin",
	"dark_urine",
	"nausea",
	"loss_of_appetite",
	"back_pain",
	"constipation",
	"abdominal_pain",
	"diarrhoea",
	"mild_fever",
	"chest_pain",
	"dizziness",
	"muscle_pain",
}

const reportPoolSize = 10000 // Pre-generate this many unique lines

func (g *ReportGenerator) Init(r *rand.Rand) {
	g.rand = r

	n := g.SymptomsPerReport
	if n <= 0 {
		n = 5
	}

	g.linePool = make([][]byte, reportPoolSize)
	for i := range g.linePool {
		var b strings.Builder
		b.WriteString(diseases[r.IntN(len(diseases))])
		for range n {
			b.WriteByte(' ')
			b.WriteString(symptoms[r.IntN(len(symptoms))])
		}
		b.WriteByte('\n')
		g.linePool[i] = []byte(b.String())
	}
}

func (g *ReportGenerator) WriteLine(w io.Writer) error {
	_, err := w.Write(g.linePool[g.rand.IntN(reportPoolSize)])
	return err
}

func (g *ReportGenerator) Keywords() []string {
	return append([]string(nil), symptoms...)
}

func (g *ReportGenerator) Description() string {
	return "Medical reports: {disease} {symptom_1} ... {symptom_5}"
}

func (g *ReportGenerator) DefaultCount() int64 {
	return 1e5 // 100,000 lines
}
