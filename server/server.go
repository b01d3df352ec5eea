// Package server wires the four spec.md §6 HTTP endpoints on top of the
// standard library net/http, grounded on the teacher's llm/httpclient
// request/response/SSE-event shapes used symmetrically here for the server
// side of the wire instead of the client side. Routing and CORS remain
// explicitly out of scope (spec.md §1 Non-goals).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/looplj/harmonygate/internal/log"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/mediator"
	"github.com/looplj/harmonygate/transformer"
)

// ErrMediatorUnavailable marks a factory failure building a per-request
// Mediator (e.g. tokenizer special-token resolution failed at startup).
var ErrMediatorUnavailable = fmt.Errorf("%w: mediator unavailable", llm.ErrNotReady)

// ReadyChecker reports whether the engine has finished loading, mirroring
// engine.ReadyChecker narrowly so the server doesn't need the Engine
// itself.
type ReadyChecker interface {
	Ready() bool
}

// MediatorFactory builds a fresh Mediator for one in-flight request,
// matching spec.md §5's "boolean flag on the mediator" per-request
// cancellation model (see the mediator.Mediator doc comment).
type MediatorFactory func() (*mediator.Mediator, error)

// Server holds the collaborators the four endpoints need.
type Server struct {
	ModelName   string
	NewMediator MediatorFactory
	Ready       ReadyChecker
	Dialects    map[string]transformer.Dialect

	startedAt time.Time
}

// New constructs a Server. dialects maps a URL path ("/v1/chat/completions",
// "/v1/messages") to the Dialect that handles it.
func New(modelName string, newMediator MediatorFactory, ready ReadyChecker, dialects map[string]transformer.Dialect) *Server {
	return &Server{
		ModelName:   modelName,
		NewMediator: newMediator,
		Ready:       ready,
		Dialects:    dialects,
		startedAt:   time.Now(),
	}
}

// Handler returns a ServeMux with the four spec.md §6 endpoints
// registered. Callers may further wrap it (TLS, timeouts); routing beyond
// these four paths is out of scope.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/v1/chat/completions", s.handleCompletion("/v1/chat/completions"))
	mux.HandleFunc("/v1/messages", s.handleCompletion("/v1/messages"))

	return mux
}

type healthResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	ModelName     string `json:"model_name,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	loaded := s.Ready == nil || s.Ready.Ready()

	resp := healthResponse{
		ModelLoaded:   loaded,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	status := http.StatusOK
	if loaded {
		resp.Status = "ok"
		resp.ModelName = s.ModelName
	} else {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelsResponse{
		Object: "list",
		Data: []modelEntry{
			{ID: s.ModelName, Object: "model", Created: s.startedAt.Unix(), OwnedBy: "local"},
		},
	})
}

func (s *Server) handleCompletion(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dialect, ok := s.Dialects[path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		ctx := r.Context()

		m, err := s.NewMediator()
		if err != nil {
			writeErr(w, dialect, ctx, ErrMediatorUnavailable)
			return
		}

		body, err := readBody(r)
		if err != nil {
			writeErr(w, dialect, ctx, err)
			return
		}

		req, err := dialect.TransformRequest(ctx, body)
		if err != nil {
			writeErr(w, dialect, ctx, err)
			return
		}

		if req.Stream {
			serveStream(ctx, w, dialect, m, req)
			return
		}

		result, err := m.Generate(ctx, req)
		if err != nil {
			writeErr(w, dialect, ctx, err)
			return
		}

		respBody, err := dialect.TransformResponse(ctx, result)
		if err != nil {
			writeErr(w, dialect, ctx, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respBody)
	}
}

// serveStream runs the streaming generation path: mediator events are
// rendered through the dialect into SSE Frames and flushed one at a time,
// per spec.md §6's "data: <json>\n\n ... data: [DONE]\n\n" framing.
func serveStream(
	ctx context.Context,
	w http.ResponseWriter,
	dialect transformer.Dialect,
	m *mediator.Mediator,
	req *llm.Request,
) {
	events, err := m.GenerateStream(ctx, req)
	if err != nil {
		writeErr(w, dialect, ctx, err)
		return
	}

	defer events.Close()

	frames, err := dialect.TransformStream(ctx, events)
	if err != nil {
		writeErr(w, dialect, ctx, err)
		return
	}

	defer frames.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for frames.Next() {
		f := frames.Current()

		msg := &sse.Message{}
		if f.Event != "" {
			msg.Type = sse.EventType(f.Event)
		}

		msg.AppendData(string(f.Data))

		if _, err := msg.WriteTo(w); err != nil {
			log.Warn(ctx, "sse write failed", log.Cause(err))
			return
		}

		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := frames.Err(); err != nil {
		log.Warn(ctx, "stream ended with error", log.Cause(err))
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, dialect transformer.Dialect, ctx context.Context, err error) {
	status, body := dialect.TransformError(ctx, err)

	log.Warn(ctx, "request failed", log.Cause(err), log.Int("status", status))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
