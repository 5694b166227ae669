// Package tokenizer estimates token counts for the assistant metrics.
package tokenizer

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"maizey-chat/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*Counter)(nil)

const fallbackEncoding = "cl100k_base"

// Counter counts with the tiktoken encoding for a model. tiktoken fetches BPE
// ranks over the network on first use, so the encoding loads in the
// background and Count estimates about four characters per token until it
// is ready. Count never blocks on the load.
type Counter struct {
	encoding string
	once     sync.Once
	ready    chan struct{}
	enc      atomic.Pointer[tiktoken.Tiktoken]
}

func New(model string) *Counter {
	return &Counter{encoding: EncodingName(model), ready: make(chan struct{})}
}

// Warm starts loading the encoding. Later calls do nothing.
func (c *Counter) Warm() {
	c.once.Do(func() { go c.load() })
}

// Ready is closed once loading has finished, whether or not it succeeded.
func (c *Counter) Ready() <-chan struct{} { return c.ready }

func (c *Counter) load() {
	defer close(c.ready)
	if enc, err := tiktoken.GetEncoding(c.encoding); err == nil {
		c.enc.Store(enc)
	}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.Warm()
	if enc := c.enc.Load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// EncodingName maps a model to its encoding; unknown models use cl100k_base.
func EncodingName(model string) string {
	if e, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return e
	}
	for prefix, e := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if model != "" && strings.HasPrefix(model, prefix) {
			return e
		}
	}
	return fallbackEncoding
}

// Estimate approximates tokens from the rune count.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
