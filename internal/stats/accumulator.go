package stats

import (
	"strings"
	"sync"
	"time"
)

// Usage is the result of one orchestration call
type Usage struct {
	WordCount  int   `json:"word_count"`
	TokenCount int   `json:"token_count"`
	ElapsedMs  int64 `json:"elapsed_ms"`
}

// Accumulator sums words and tokens across the rounds of one call
type Accumulator struct {
	mu     sync.Mutex
	start  time.Time
	words  int
	tokens int
	now    func() time.Time
}

// NewAccumulator starts the elapsed timer
func NewAccumulator() *Accumulator {
	return newAccumulatorWithClock(time.Now)
}

func newAccumulatorWithClock(now func() time.Time) *Accumulator {
	return &Accumulator{start: now(), now: now}
}

// AddWords counts the whitespace-separated words in the text delivered by
// one round
func (a *Accumulator) AddWords(text string) int {
	n := CountWords(text)
	a.mu.Lock()
	a.words += n
	a.mu.Unlock()
	return n
}

// AddTokens adds the token count reported by one round
func (a *Accumulator) AddTokens(tokens int) {
	if tokens <= 0 {
		return
	}
	a.mu.Lock()
	a.tokens += tokens
	a.mu.Unlock()
}

// Finish returns the totals with elapsed time measured up to now
func (a *Accumulator) Finish() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Usage{
		WordCount:  a.words,
		TokenCount: a.tokens,
		ElapsedMs:  a.now().Sub(a.start).Milliseconds(),
	}
}

// CountWords splits on any whitespace and ignores empty entries
func CountWords(s string) int {
	return len(strings.Fields(s))
}
