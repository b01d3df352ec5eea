package simulator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/transformer/openai"
)

func TestSimulator_Simulate(t *testing.T) {
	dialect := openai.New("gpt-harmony", "2024-06", "2026-07-31")
	sim := New(dialect)

	body := `{"model":"gpt-harmony","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))

	llmReq, err := sim.Simulate(req.Context(), req)
	require.NoError(t, err)
	assert.Len(t, llmReq.Messages, 1)
	assert.Equal(t, "hi", llmReq.Messages[0].Content)
}

func TestSimulator_Simulate_InvalidBody(t *testing.T) {
	dialect := openai.New("gpt-harmony", "2024-06", "2026-07-31")
	sim := New(dialect)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("not json"))

	_, err := sim.Simulate(req.Context(), req)
	assert.Error(t, err)
}
