// Package mediator implements the inference orchestrator (C6): it combines
// the Harmony codec (C1-C3), the engine lock (C5), and the recovery policies
// (C8) into the two public operations described in spec.md §4.6.
package mediator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/looplj/harmonygate/engine"
	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/internal/log"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/recovery"
	"github.com/looplj/harmonygate/streams"
	"github.com/looplj/harmonygate/tools"
)

// MetricsRecorder receives a completed generation's record (C7). Kept as a
// small local interface so this package doesn't depend on package metrics'
// concrete type, mirroring the teacher's habit of depending on narrow
// collaborator interfaces rather than importing sibling packages directly.
type MetricsRecorder interface {
	Record(llm.GenerationMetrics)
}

type noopRecorder struct{}

func (noopRecorder) Record(llm.GenerationMetrics) {}

// Config bundles a Mediator's collaborators.
type Config struct {
	Tokenizer harmony.Tokenizer
	Engine    engine.Engine
	Lock      *engine.Lock
	Metrics   MetricsRecorder

	// RetryPolicy governs the C8 retry loop; zero value falls back to
	// recovery.DefaultPolicy().
	RetryPolicy recovery.Policy

	// MemorySafetyMarginBytes and AvailableMemoryBytes feed C8's
	// memory-aware clamp. AvailableMemoryBytes == 0 disables the check
	// (test engines rarely report real memory figures).
	AvailableMemoryBytes    int64
	MemorySafetyMarginBytes int64

	RouteToolCallsToToolUse bool

	// PromptTruncationPolicy governs where recovery.TruncatePrompt cuts the
	// longest message's content on a context_overflow retry. Zero value
	// falls back to llm.TruncateMiddle.
	PromptTruncationPolicy llm.TruncationPolicy
}

// promptTruncateFactor mirrors recovery.Degrade's context_overflow
// max_tokens factor: each context_overflow retry also shrinks the longest
// message by the same proportion.
const promptTruncateFactor = 0.7

// Mediator is the orchestrator of spec.md §4.6. One Mediator should be
// constructed per in-flight request: the cancellation flag is per-instance,
// matching spec.md §5's "boolean flag on the mediator" model.
type Mediator struct {
	cfg Config
	ids harmony.SpecialTokenIDs

	cancelled atomic.Bool
}

// New constructs a Mediator, resolving the special-token ids once up front.
func New(cfg Config) (*Mediator, error) {
	if cfg.Metrics == nil {
		cfg.Metrics = noopRecorder{}
	}

	if cfg.RetryPolicy == (recovery.Policy{}) {
		cfg.RetryPolicy = recovery.DefaultPolicy()
	}

	if cfg.MemorySafetyMarginBytes == 0 {
		cfg.MemorySafetyMarginBytes = recovery.DefaultSafetyMarginBytes
	}

	ids, err := harmony.ResolveAll(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}

	return &Mediator{cfg: cfg, ids: ids}, nil
}

// Cancel sets the cancellation flag, effective at the next token boundary
// inside GenerateStream (spec.md §4.6 "cancel()"). It has no effect on a
// non-streaming Generate call, which has no token boundary to observe it at.
func (m *Mediator) Cancel() {
	m.cancelled.Store(true)
}

func (m *Mediator) buildPrompt(req *llm.Request) (*harmony.Prompt, error) {
	return harmony.Build(harmony.BuildParams{
		Tokenizer:               m.cfg.Tokenizer,
		Messages:                req.Messages,
		Tools:                   req.Tools,
		Reasoning:               req.EffectiveReasoningEffort(),
		KnowledgeCutoff:         req.KnowledgeCutoff,
		CurrentDate:             req.CurrentDate,
		RouteToolCallsToToolUse: m.cfg.RouteToolCallsToToolUse,
	})
}

// Generate runs a complete, non-streaming generation (spec.md §4.6 steps
// 1-8), wrapped in the C8 retry/degradation loop.
func (m *Mediator) Generate(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := req.Params

	// working carries a mediator-owned copy of the messages so a
	// context_overflow retry can shrink the prompt without mutating the
	// caller's Request.
	working := *req
	working.Messages = append([]llm.Message(nil), req.Messages...)

	var (
		result  *llm.GenerationResult
		lastErr error
	)

	for attempt := 0; ; attempt++ {
		result, lastErr = m.generateOnce(ctx, &working, params)
		if lastErr == nil {
			return result, nil
		}

		kind := recovery.Classify(lastErr)
		if !m.cfg.RetryPolicy.ShouldRetry(kind, attempt+1) {
			return nil, lastErr
		}

		if recovery.DispositionFor(kind) == recovery.DispositionDegradable {
			degraded, derr := recovery.Degrade(params, kind)
			if derr != nil {
				return nil, lastErr
			}

			params = degraded

			if kind == recovery.KindContextOverflow {
				working.Messages = m.truncateLongestMessage(working.Messages)
			}
		} else {
			select {
			case <-time.After(m.cfg.RetryPolicy.Backoff(attempt + 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// truncateLongestMessage shrinks the longest message's content by
// promptTruncateFactor (recovery.TruncatePrompt), returning a new slice so
// the caller's working copy is never shared with an earlier attempt.
func (m *Mediator) truncateLongestMessage(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return msgs
	}

	longest := 0

	for i, msg := range msgs {
		if len(msg.Content) > len(msgs[longest].Content) {
			longest = i
		}
	}

	policy := m.cfg.PromptTruncationPolicy
	if policy == "" {
		policy = llm.TruncateMiddle
	}

	budget := int(float64(len(msgs[longest].Content)) * promptTruncateFactor)

	next := append([]llm.Message(nil), msgs...)
	next[longest].Content = recovery.TruncatePrompt(next[longest].Content, budget, policy)

	return next
}

func (m *Mediator) generateOnce(ctx context.Context, req *llm.Request, params llm.SamplingParams) (*llm.GenerationResult, error) {
	prompt, err := m.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	if m.cfg.AvailableMemoryBytes > 0 {
		clamped, err := recovery.MemoryPrepare(
			params,
			int64(len(prompt.TokenIDs)),
			m.cfg.AvailableMemoryBytes,
			m.cfg.MemorySafetyMarginBytes,
		)
		if err != nil {
			return nil, err
		}

		params = clamped
	}

	release, err := m.cfg.Lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	rawTokens, genErr := m.cfg.Engine.Generate(ctx, prompt.TokenIDs, params)

	release()

	engine.ClearCache(ctx, m.cfg.Engine)

	if genErr != nil {
		return nil, genErr
	}

	latency := time.Since(started)

	p := harmony.NewParser(m.ids)
	for _, tok := range rawTokens {
		p.Feed(tok)
	}

	p.ProcessEOS()

	parsed := p.Result(!req.CaptureReasoning)
	finish := resolveFinishReason(p.FinishReason(), int64(len(rawTokens)), params.MaxTokens)

	promptTokens := int64(len(prompt.TokenIDs))
	tokensGenerated := int64(len(rawTokens))

	metrics := llm.GenerationMetrics{
		PromptTokens:    promptTokens,
		TokensGenerated: tokensGenerated,
		LatencyMS:       latency.Milliseconds(),
		TokensPerSecond: tokensPerSecond(tokensGenerated, latency),
		FinishReason:    finish,
		TimestampUnix:   started.Unix(),
	}

	m.cfg.Metrics.Record(metrics)

	log.Info(ctx, "generation complete",
		log.Int64("prompt_tokens", promptTokens),
		log.Int64("tokens_generated", tokensGenerated),
		log.Duration("latency", latency),
		log.String("finish_reason", string(finish)),
	)

	var toolCalls []llm.ToolCall

	if finish == llm.FinishToolUse {
		// Detection is best-effort and must never fail the generation
		// (tools.Detect already swallows malformed/unrecognized payloads).
		if calls, derr := tools.Detect(parsed); derr == nil {
			toolCalls = calls
		}
	}

	return &llm.GenerationResult{
		Text:            parsed.Final,
		TokensGenerated: tokensGenerated,
		PromptTokens:    promptTokens,
		LatencyMS:       latency.Milliseconds(),
		TokensPerSecond: metrics.TokensPerSecond,
		FinishReason:    finish,
		Analysis:        parsed.Analysis,
		Commentary:      parsed.Commentary,
		Channels:        parsed.Channels,
		ToolCalls:       toolCalls,
		Metrics:         metrics,
	}, nil
}

// GenerateStream runs a streaming generation (spec.md §4.6 "generate_stream"),
// returning a Stream of llm.StreamEvent carrying only final-channel deltas
// plus a single terminal event.
func (m *Mediator) GenerateStream(ctx context.Context, req *llm.Request) (streams.Stream[llm.StreamEvent], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := req.Params

	prompt, err := m.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	if m.cfg.AvailableMemoryBytes > 0 {
		clamped, err := recovery.MemoryPrepare(
			params,
			int64(len(prompt.TokenIDs)),
			m.cfg.AvailableMemoryBytes,
			m.cfg.MemorySafetyMarginBytes,
		)
		if err != nil {
			return nil, err
		}

		params = clamped
	}

	release, err := m.cfg.Lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	tokenStream, err := m.cfg.Engine.GenerateStream(ctx, prompt.TokenIDs, params)
	if err != nil {
		release()
		return nil, err
	}

	return newGenerationStream(ctx, m, prompt, tokenStream, params.MaxTokens, release), nil
}

// resolveFinishReason implements spec.md §4.6 step 7's stop-kind mapping:
// a finish reason the parser recorded (from a terminal marker, or length for
// a message left open at end-of-stream) wins outright; absent one, budget
// exhaustion maps to length, otherwise stop.
func resolveFinishReason(parserFinish *llm.FinishReason, tokensGenerated, maxTokens int64) llm.FinishReason {
	if parserFinish != nil {
		return *parserFinish
	}

	if tokensGenerated >= maxTokens {
		return llm.FinishLength
	}

	return llm.FinishStop
}

func tokensPerSecond(tokens int64, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}

	return float64(tokens) / seconds
}
