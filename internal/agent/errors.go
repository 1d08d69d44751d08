package agent

import "fmt"

// BudgetError reports a query rejected before any network call because
// its estimated prompt cost exceeds the context window.
type BudgetError struct {
	Estimated int
	Max       int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("estimated prompt size %d tokens exceeds the %d token context window", e.Estimated, e.Max)
}
