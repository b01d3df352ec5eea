package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/engine"
	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/mediator"
	"github.com/looplj/harmonygate/streams"
	"github.com/looplj/harmonygate/transformer"
	"github.com/looplj/harmonygate/transformer/openai"
)

type stubTokenizer struct{}

func (stubTokenizer) Encode(text string, _ bool) ([]harmony.Token, error) {
	ids := make([]harmony.Token, len(text))
	for i := range text {
		ids[i] = harmony.Token(i + 1)
	}

	return ids, nil
}

func (stubTokenizer) Decode(ids []harmony.Token) (string, error) { return "", nil }

func (stubTokenizer) SpecialID(harmony.SpecialTokenName) (harmony.Token, bool) { return 0, false }

func canned() []harmony.EngineToken {
	texts := []string{"<|start|>", "assistant", "<|channel|>", "final", "<|message|>", "Hello", "<|return|>"}
	out := make([]harmony.EngineToken, len(texts))

	for i, t := range texts {
		out[i] = harmony.EngineToken{Text: t}
	}

	return out
}

type stubEngine struct{}

func (stubEngine) Generate(ctx context.Context, tokenIDs []harmony.Token, params llm.SamplingParams) ([]harmony.EngineToken, error) {
	return canned(), nil
}

func (stubEngine) GenerateStream(ctx context.Context, tokenIDs []harmony.Token, params llm.SamplingParams) (streams.Stream[harmony.EngineToken], error) {
	return streams.SliceStream(canned()), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	lock := engine.NewLock()

	newMediator := func() (*mediator.Mediator, error) {
		return mediator.New(mediator.Config{
			Tokenizer: stubTokenizer{},
			Engine:    stubEngine{},
			Lock:      lock,
		})
	}

	dialects := map[string]transformer.Dialect{
		"/v1/chat/completions": openai.New("gpt-harmony", "2024-06", "2026-07-31"),
	}

	return New("gpt-harmony", newMediator, nil, dialects)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestServer_Models(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp modelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "gpt-harmony", resp.Data[0].ID)
}

func TestServer_ChatCompletions(t *testing.T) {
	s := newTestServer(t)

	body := `{"model":"gpt-harmony","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp openai.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello", resp.Choices[0].Message.Content)
}

func TestServer_ChatCompletions_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
