package generator

import (
	"fmt"
	"slices"
)

// Registry maps generator names to generator factory functions
var Registry = map[string]func() Generator{
	"reports": func() Generator { return &ReportGenerator{SymptomsPerReport: 5} },
	"notes":   func() Generator { return &NoteGenerator{LongEvery: 100, LongLength: 999} },
}

// Get returns a generator by name
func Get(name string) (Generator, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator: %s", name)
	}
	return factory(), nil
}

// List returns all available generator names, sorted
func List() []string {
	var names []string
	for name := range Registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetLongLines updates how often and how long the notes generator pads lines
func SetLongLines(every, length int) {
	Registry["notes"] = func() Generator { return &NoteGenerator{LongEvery: every, LongLength: length} }
}
