package ui

import (
	"fmt"
	"strings"
)

// Mock implements the IO interface for testing.
type Mock struct {
	inputs     []string
	inputIndex int

	// Output captures everything printed.
	Output strings.Builder
}

// NewMock creates a Mock that replays the given input lines.
func NewMock(inputs ...string) *Mock {
	return &Mock{inputs: inputs}
}

// Print outputs values to the mock output buffer.
func (m *Mock) Print(a ...any) {
	fmt.Fprint(&m.Output, a...)
}

// Println outputs values with newline to the mock output buffer.
func (m *Mock) Println(a ...any) {
	fmt.Fprintln(&m.Output, a...)
}

// Printf outputs formatted string to the mock output buffer.
func (m *Mock) Printf(format string, a ...any) {
	fmt.Fprintf(&m.Output, format, a...)
}

// Scan advances to the next input and returns true if one is available.
func (m *Mock) Scan() bool {
	if m.inputIndex >= len(m.inputs) {
		return false
	}
	m.inputIndex++
	return true
}

// Text returns the current input line.
func (m *Mock) Text() string {
	if m.inputIndex-1 < 0 || m.inputIndex-1 >= len(m.inputs) {
		return ""
	}
	return m.inputs[m.inputIndex-1]
}
