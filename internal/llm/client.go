// Package llm provides the LLM transports used by the knowledge base.
package llm

import (
	"context"
	"strings"
)

// Client is the minimal completion surface the knowledge base needs.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Model returns the model identifier used for completions.
	Model() string
}

// defaultSystemPrompt is used when a caller passes an empty system prompt.
const defaultSystemPrompt = "You are an assistant trained in biochemical process engineering. Respond with a single JSON object."

// CleanJSONResponse removes markdown code fences from a JSON response.
func CleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	// Some models wrap the object in prose; keep the outermost braces.
	if !strings.HasPrefix(resp, "{") {
		if start := strings.Index(resp, "{"); start >= 0 {
			if end := strings.LastIndex(resp, "}"); end > start {
				resp = resp[start : end+1]
			}
		}
	}
	return resp
}
