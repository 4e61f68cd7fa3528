package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens the way ActionHistoryEntry.Tokens and the
// episodic store's summary-truncation logic need: a single cached
// cl100k_base encoding reused across calls, with no per-model encoding
// lookup.
type TokenCounter struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter returns a counter using cl100k_base, the encoding shared
// by the chat-completion-style models this module's LLM contract targets.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the token count for text.
func (c *TokenCounter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// TruncateToBudget trims text to at most maxTokens tokens, cutting on a
// token boundary rather than a byte boundary.
func (c *TokenCounter) TruncateToBudget(text string, maxTokens int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:maxTokens])
}
