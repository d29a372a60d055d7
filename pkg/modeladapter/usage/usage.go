// Package usage accumulates token counts reported by vendor responses.
package usage

import "sync"

// TokenCount holds prompt and completion token counts for one call.
type TokenCount struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Summary is a point-in-time view of a Tracker.
type Summary struct {
	Calls int        `json:"calls"`
	Total TokenCount `json:"total"`
	Last  TokenCount `json:"last"`
}

// Tracker keeps running totals across calls to one model instance.
// Calls whose response carries no usage block are not recorded.
// It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	calls int
	total TokenCount
	last  TokenCount
}

// Add records the usage of one call. Zero counts are ignored.
func (t *Tracker) Add(tc TokenCount) {
	if tc.Total() == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	t.total.InputTokens += tc.InputTokens
	t.total.OutputTokens += tc.OutputTokens
	t.last = tc
}

// Last returns the most recently recorded count.
// The bool is false when nothing has been recorded.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.calls > 0
}

// Summary returns the call count, running total and last count.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Summary{Calls: t.calls, Total: t.total, Last: t.last}
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = 0
	t.total = TokenCount{}
	t.last = TokenCount{}
}
