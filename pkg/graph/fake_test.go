package graph

import (
	"context"
	"sync"
	"time"

	"github.com/OFFIS-RIT/lexgraph/pkg/ai"
)

// scriptedClient replays responses in order. A response with a non-nil err
// fails that call.
type scriptedClient struct {
	mu        sync.Mutex
	responses []scriptedResponse
	prompts   []string
	options   []ai.GenerateOptions
}

type scriptedResponse struct {
	text string
	err  error
}

func (c *scriptedClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var o ai.GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.options = append(c.options, o)

	if len(c.responses) == 0 {
		return "", errTestExhausted
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r.text, r.err
}

func (c *scriptedClient) ResetMetrics()               {}
func (c *scriptedClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// recordingSleep records requested durations without waiting.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}
