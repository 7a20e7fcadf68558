package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks LLM completions by provider and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maml",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of LLM completion requests by status",
		},
		[]string{"provider", "status"},
	)

	// RequestDuration tracks LLM completion latency in seconds
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maml",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of LLM completion requests in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)
)

// InstrumentedClient records request counts and latency around another Client.
type InstrumentedClient struct {
	inner    Client
	provider string
}

// NewInstrumentedClient wraps a client with Prometheus metrics.
func NewInstrumentedClient(inner Client, provider string) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, provider: provider}
}

// Complete sends a prompt and returns the completion.
func (c *InstrumentedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem delegates and records the outcome.
func (c *InstrumentedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	resp, err := c.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	RequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	RequestsTotal.WithLabelValues(c.provider, status).Inc()
	return resp, err
}

// Model returns the wrapped client's model.
func (c *InstrumentedClient) Model() string {
	return c.inner.Model()
}
