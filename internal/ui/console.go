// Package ui abstracts terminal input and output so the chat loop can
// be driven by a real console or a scripted mock in tests.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// IO is the console surface the chat loop talks to.
type IO interface {
	Print(a ...any)
	Println(a ...any)
	Printf(format string, a ...any)
	Scan() bool
	Text() string
}

// Console implements IO over a reader and writer, usually stdin and
// stdout.
type Console struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewConsole creates a Console. A nil in or out falls back to stdin and
// stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Print writes values to the output.
func (c *Console) Print(a ...any) {
	fmt.Fprint(c.out, a...)
}

// Println writes values followed by a newline.
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Printf writes a formatted string.
func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// Scan advances to the next input line. It returns false on EOF or a
// read error.
func (c *Console) Scan() bool {
	return c.scanner.Scan()
}

// Text returns the most recently scanned line without its newline.
func (c *Console) Text() string {
	return c.scanner.Text()
}
