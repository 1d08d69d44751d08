package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askdoc/askdoc/internal/ui"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"exit", true},
		{"quit", true},
		{"q", true},
		{"EXIT", true},
		{"Quit", true},
		{"Q", true},
		{"exit now", false},
		{"what is q", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Errorf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunLoopAnswersAndExits(t *testing.T) {
	mock := ui.NewMock("what is pgvector?", "exit")

	var asked []string
	runLoop(context.Background(), mock, func(_ context.Context, q string) (string, error) {
		asked = append(asked, q)
		return "a Postgres extension", nil
	})

	if len(asked) != 1 || asked[0] != "what is pgvector?" {
		t.Errorf("asked = %v", asked)
	}
	out := mock.Output.String()
	if !strings.Contains(out, "a Postgres extension") {
		t.Errorf("output missing answer:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Errorf("output missing goodbye:\n%s", out)
	}
}

func TestRunLoopSkipsBlankInput(t *testing.T) {
	mock := ui.NewMock("", "   ", "quit")

	calls := 0
	runLoop(context.Background(), mock, func(context.Context, string) (string, error) {
		calls++
		return "", nil
	})

	if calls != 0 {
		t.Errorf("chat called %d times for blank input, want 0", calls)
	}
}

func TestRunLoopContinuesAfterError(t *testing.T) {
	mock := ui.NewMock("first", "second", "exit")

	var asked []string
	runLoop(context.Background(), mock, func(_ context.Context, q string) (string, error) {
		asked = append(asked, q)
		if q == "first" {
			return "", errors.New("model unavailable")
		}
		return "fine", nil
	})

	if len(asked) != 2 {
		t.Fatalf("asked = %v, want both questions", asked)
	}
	out := mock.Output.String()
	if !strings.Contains(out, "Error: model unavailable") {
		t.Errorf("output missing error:\n%s", out)
	}
	if !strings.Contains(out, "fine") {
		t.Errorf("output missing second answer:\n%s", out)
	}
}

func TestRunLoopExitsOnEOF(t *testing.T) {
	mock := ui.NewMock("hello")

	runLoop(context.Background(), mock, func(context.Context, string) (string, error) {
		return "hi", nil
	})
	// Inputs exhausted: the loop must have returned rather than spun.
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "askdoc") {
		t.Errorf("version output = %q", out.String())
	}
}
