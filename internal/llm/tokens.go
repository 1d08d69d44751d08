package llm

// TokensPerChar is the fixed character-to-token approximation ratio.
// This is a rough heuristic for English text, not a real tokenizer;
// callers budgeting with it must leave headroom.
const TokensPerChar = 3.5

// EstimateTokens estimates the token count of text as
// floor(len(text) / 3.5). Monotonic non-decreasing in text length.
func EstimateTokens(text string) int {
	return int(float64(len(text)) / TokensPerChar)
}
