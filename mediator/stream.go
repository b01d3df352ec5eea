package mediator

import (
	"context"
	"time"

	"github.com/looplj/harmonygate/engine"
	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/internal/log"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

// generationStream implements streams.Stream[llm.StreamEvent] over a raw
// engine token stream, applying spec.md §4.6 "generate_stream": only
// final-channel deltas are forwarded, a single terminal event closes the
// stream, and the engine lock is released exactly once regardless of how
// the stream ends.
type generationStream struct {
	ctx    context.Context
	m      *Mediator
	prompt *harmony.Prompt
	tokens streams.Stream[harmony.EngineToken]
	parser *harmony.Parser
	release func()

	maxTokens    int64
	started      time.Time
	ttft         *time.Duration
	tokenCount   int64
	pending      []llm.StreamEvent
	current      llm.StreamEvent
	err          error
	terminalSent bool
	released     bool
}

func newGenerationStream(
	ctx context.Context,
	m *Mediator,
	prompt *harmony.Prompt,
	tokens streams.Stream[harmony.EngineToken],
	maxTokens int64,
	release func(),
) *generationStream {
	return &generationStream{
		ctx:       ctx,
		m:         m,
		prompt:    prompt,
		tokens:    tokens,
		parser:    harmony.NewParser(m.ids),
		release:   release,
		started:   time.Now(),
		maxTokens: maxTokens,
	}
}

func (s *generationStream) finalizeOnce() {
	if s.released {
		return
	}

	s.released = true
	s.release()

	engine.ClearCache(s.ctx, s.m.cfg.Engine)
}

func (s *generationStream) emitTerminal(reason llm.FinishReason) bool {
	if s.terminalSent {
		return false
	}

	s.terminalSent = true
	s.finalizeOnce()

	latency := time.Since(s.started)

	metrics := llm.GenerationMetrics{
		PromptTokens:    int64(len(s.prompt.TokenIDs)),
		TokensGenerated: s.tokenCount,
		LatencyMS:       latency.Milliseconds(),
		TokensPerSecond: tokensPerSecond(s.tokenCount, latency),
		FinishReason:    reason,
		TimestampUnix:   s.started.Unix(),
	}

	if s.ttft != nil {
		ms := s.ttft.Milliseconds()
		metrics.TTFTMs = &ms
	}

	s.m.cfg.Metrics.Record(metrics)

	log.Info(s.ctx, "streaming generation complete",
		log.Int64("tokens_generated", s.tokenCount),
		log.Duration("latency", latency),
		log.String("finish_reason", string(reason)),
	)

	reasonCopy := reason
	s.current = llm.StreamEvent{FinishReason: &reasonCopy}

	return true
}

// Next advances the stream, applying cancellation, TTFT stamping, and
// channel filtering per spec.md §4.6 step 3. It returns false only after a
// terminal event has been produced and consumed.
func (s *generationStream) Next() bool {
	if s.terminalSent {
		return false
	}

	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.current = ev

			return true
		}

		if s.m.cancelled.Load() {
			return s.emitTerminal(llm.FinishCancelled)
		}

		select {
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return s.emitTerminal(llm.FinishCancelled)
		default:
		}

		if !s.tokens.Next() {
			if err := s.tokens.Err(); err != nil {
				s.err = err
				return s.emitTerminal(llm.FinishError)
			}

			s.parser.ProcessEOS()

			reason := resolveFinishReason(s.parser.FinishReason(), s.tokenCount, s.maxTokens)

			return s.emitTerminal(reason)
		}

		tok := s.tokens.Current()
		s.tokenCount++

		if s.ttft == nil {
			elapsed := time.Since(s.started)
			s.ttft = &elapsed
		}

		events := s.parser.Feed(tok)
		for _, ev := range events {
			if ev.FinishReason != nil {
				// A terminal marker (<|return|>/<|call|>) ends the stream
				// right here: emit the one terminal event the contract
				// promises and stop, rather than forwarding this one and
				// letting EOS manufacture a second.
				reason := resolveFinishReason(s.parser.FinishReason(), s.tokenCount, s.maxTokens)
				return s.emitTerminal(reason)
			}

			if ev.IsFinalChannel {
				s.pending = append(s.pending, ev)
			}
		}

		if len(s.pending) > 0 {
			continue
		}
	}
}

func (s *generationStream) Current() llm.StreamEvent {
	return s.current
}

func (s *generationStream) Err() error {
	return s.err
}

func (s *generationStream) Close() error {
	s.finalizeOnce()
	return s.tokens.Close()
}
