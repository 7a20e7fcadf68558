package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/config"
)

type fakeClient struct {
	resp string
	err  error
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(context.Context, string, string) (string, error) {
	return f.resp, f.err
}

func (f *fakeClient) Model() string { return "fake-model" }

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONResponse(tt.in))
		})
	}
}

func TestInstrumentedClient_CountsOutcomes(t *testing.T) {
	okBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues("fake_ok", "ok"))
	errBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues("fake_err", "error"))

	ok := NewInstrumentedClient(&fakeClient{resp: "{}"}, "fake_ok")
	resp, err := ok.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", resp)
	assert.Equal(t, "fake-model", ok.Model())

	bad := NewInstrumentedClient(&fakeClient{err: errors.New("boom")}, "fake_err")
	_, err = bad.CompleteWithSystem(context.Background(), "s", "u")
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("fake_ok", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("fake_err", "error")))
}

func TestNewClientFromConfig(t *testing.T) {
	c, err := NewClientFromConfig(context.Background(), config.LLMConfig{
		Provider: "openai", APIKey: "k", Model: "gpt-test",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", c.Model())

	_, err = NewClientFromConfig(context.Background(), config.LLMConfig{Provider: "zai"}, 0)
	assert.Error(t, err)

	_, err = NewClientFromConfig(context.Background(), config.LLMConfig{Provider: "gemini"}, 0)
	assert.Error(t, err, "gemini without key")
}
