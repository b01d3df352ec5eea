// Package simulator exercises a façade Dialect's inbound half without
// invoking the engine, for tests and operator tooling. Grounded on the
// teacher's llm/simulator.Simulator, trimmed to the inbound-only half: the
// teacher's Simulate method also runs an Outbound transformer that builds
// an http.Request to forward to a remote provider, which has no equivalent
// here since this gateway's only downstream hop is the local engine, not
// another HTTP API.
package simulator

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/transformer"
)

// Simulator replays the inbound half of a Dialect's request handling.
type Simulator struct {
	Dialect transformer.Dialect
}

// New creates a Simulator for the given dialect.
func New(dialect transformer.Dialect) *Simulator {
	return &Simulator{Dialect: dialect}
}

// Simulate reads req's body and runs it through the dialect's
// TransformRequest, returning the llm.Request the mediator would receive —
// the local equivalent of the teacher's "what would be sent to the AI
// provider" preview, stopping one hop earlier since there is no provider
// to forward to.
func (s *Simulator) Simulate(ctx context.Context, req *http.Request) (*llm.Request, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("simulator: read request body: %w", err)
	}

	llmReq, err := s.Dialect.TransformRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("simulator: inbound transformation failed: %w", err)
	}

	return llmReq, nil
}
