// Package config loads the gateway's environment-driven configuration
// (C11), grounded on spec.md §6's environment-knob table and the teacher's
// spf13/cast-based loose-typing conversions (internal/objects/decimal.go,
// llm/transformer/openrouter/outbound.go) applied to os.Getenv reads
// instead of dynamic JSON fields.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/looplj/harmonygate/llm"
)

// Config is the fully resolved set of environment knobs the gateway reads
// at startup.
type Config struct {
	// GATEWAY_ADDR: HTTP listen address for C12.
	GatewayAddr string

	// MODEL_NAME: reported in /v1/models and /health.
	ModelName string

	// KNOWLEDGE_CUTOFF / CURRENT_DATE: fed into the Harmony system block.
	KnowledgeCutoff string
	CurrentDate     string

	// Sampling and streaming knobs (spec.md §6). Load reads them, but the
	// dialects wired in cmd/gateway do not: each request starts from
	// llm.DefaultSamplingParams plus the client's own values.
	Temperature      float64
	TopP             float64
	MaxTokens        int64
	StopSequences    []string
	ReasoningLevel   string
	CaptureReasoning bool
	Streaming        bool

	// ENGINE_MEMORY_SAFETY_MARGIN_BYTES: feeds C8's memory-aware clamp.
	EngineMemorySafetyMarginBytes int64

	// LOG_LEVEL: feeds C10.
	LogLevel string

	// METRICS_SUMMARY_CRON: cron schedule for C7's rolling-summary log line.
	MetricsSummaryCron string
}

// Load resolves Config from the process environment, applying spec.md §3's
// default sampling bundle wherever a knob is unset.
func Load() Config {
	defaults := llm.DefaultSamplingParams()

	return Config{
		GatewayAddr:     getEnv("GATEWAY_ADDR", ":8080"),
		ModelName:       getEnv("MODEL_NAME", "harmony-gateway"),
		KnowledgeCutoff: getEnv("KNOWLEDGE_CUTOFF", "2024-06"),
		CurrentDate:     getEnv("CURRENT_DATE", time.Now().Format("2006-01-02")),

		Temperature:      cast.ToFloat64(getEnv("TEMPERATURE", cast.ToString(defaults.Temperature))),
		TopP:             cast.ToFloat64(getEnv("TOP_P", cast.ToString(defaults.TopP))),
		MaxTokens:        cast.ToInt64(getEnv("MAX_TOKENS", cast.ToString(defaults.MaxTokens))),
		StopSequences:    parseStopSequences(os.Getenv("STOP_SEQUENCES")),
		ReasoningLevel:   getEnv("REASONING_LEVEL", ""),
		CaptureReasoning: cast.ToBool(getEnv("CAPTURE_REASONING", "false")),
		Streaming:        cast.ToBool(getEnv("STREAMING", "true")),

		EngineMemorySafetyMarginBytes: cast.ToInt64(getEnv("ENGINE_MEMORY_SAFETY_MARGIN_BYTES", "0")),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		MetricsSummaryCron: getEnv("METRICS_SUMMARY_CRON", "*/1 * * * *"),
	}
}

// SamplingParams renders the configured defaults as an llm.SamplingParams
// bundle, ready for a façade to override per-request fields onto.
func (c Config) SamplingParams() llm.SamplingParams {
	p := llm.DefaultSamplingParams()
	p.Temperature = c.Temperature
	p.TopP = c.TopP
	p.MaxTokens = c.MaxTokens
	p.StopSequences = c.StopSequences

	return p
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

// parseStopSequences splits STOP_SEQUENCES on commas, trimming whitespace
// and dropping empty entries, in the teacher's lo.Map/lo.Filter idiom
// (llm/internal/pkg/xjson/schema.go's lo.ForEach-based transforms).
func parseStopSequences(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	trimmed := lo.Map(strings.Split(raw, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})

	return lo.Filter(trimmed, func(p string, _ int) bool {
		return p != ""
	})
}
