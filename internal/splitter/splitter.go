// Package splitter implements recursive character text splitting.
//
// Text is split on a separator hierarchy (paragraph, line, word,
// character) and the pieces are greedily merged into chunks of at most
// the configured size, with a fixed character overlap carried between
// adjacent chunks. The result for a given input is deterministic:
// chunk boundaries depend only on the text and the settings.
package splitter

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// defaultSeparators is the split hierarchy, coarsest first. The empty
// separator splits into individual characters and always matches, so
// recursion terminates.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text into overlapping chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	logger       *slog.Logger
}

// New creates a Splitter. chunkSize bounds chunk length in characters;
// chunkOverlap is the number of trailing characters repeated at the
// start of the next chunk. overlap must be smaller than size.
func New(chunkSize, chunkOverlap int, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
		logger:       logger,
	}
}

// Split splits text into chunks. Returns nil for empty input.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// split recursively splits text using the first applicable separator.
func (s *Splitter) split(text string, separators []string) []string {
	separator, remaining := pickSeparator(text, separators)

	var parts []string
	if separator == "" {
		parts = splitChars(text)
	} else {
		parts = strings.Split(text, separator)
	}

	var chunks []string
	var pending []string
	for _, part := range parts {
		if utf8.RuneCountInString(part) < s.chunkSize {
			pending = append(pending, part)
			continue
		}

		// Oversized part: flush what fits, then recurse into it.
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, separator)...)
			pending = nil
		}
		if len(remaining) == 0 {
			chunks = append(chunks, part)
		} else {
			chunks = append(chunks, s.split(part, remaining)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, separator)...)
	}

	return chunks
}

// pickSeparator returns the first separator present in the text and
// the separators below it in the hierarchy.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitChars splits text into individual characters.
func splitChars(text string) []string {
	parts := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		parts = append(parts, string(r))
	}
	return parts
}

// merge greedily joins splits into chunks of at most chunkSize
// characters, carrying chunkOverlap characters between neighbors.
func (s *Splitter) merge(splits []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)

	var chunks []string
	var window []string
	total := 0

	joinLen := func(extra int) int {
		if len(window) == 0 {
			return total + extra
		}
		return total + extra + sepLen
	}

	for _, split := range splits {
		splitLen := utf8.RuneCountInString(split)

		if joinLen(splitLen) > s.chunkSize {
			if total > s.chunkSize {
				s.logger.Warn("chunk longer than configured size",
					"length", total, "chunk_size", s.chunkSize)
			}
			if len(window) > 0 {
				if chunk := join(window, separator); chunk != "" {
					chunks = append(chunks, chunk)
				}
				// Slide the window until within the overlap budget and
				// the incoming split fits.
				for total > s.chunkOverlap || (joinLen(splitLen) > s.chunkSize && total > 0) {
					total -= utf8.RuneCountInString(window[0])
					if len(window) > 1 {
						total -= sepLen
					}
					window = window[1:]
				}
			}
		}

		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, split)
		total += splitLen
	}

	if chunk := join(window, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// join concatenates splits with the separator and trims surrounding
// whitespace, dropping chunks that end up empty.
func join(splits []string, separator string) string {
	return strings.TrimSpace(strings.Join(splits, separator))
}
