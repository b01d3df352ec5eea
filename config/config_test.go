package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	c := Load()
	assert.Equal(t, ":8080", c.GatewayAddr)
	assert.Equal(t, "harmony-gateway", c.ModelName)
	assert.Equal(t, 1.0, c.Temperature)
	assert.Equal(t, int64(512), c.MaxTokens)
	assert.True(t, c.Streaming)
	assert.False(t, c.CaptureReasoning)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":9090")
	t.Setenv("TEMPERATURE", "0.4")
	t.Setenv("MAX_TOKENS", "128")
	t.Setenv("STOP_SEQUENCES", "a, b ,c")
	t.Setenv("CAPTURE_REASONING", "true")

	c := Load()
	assert.Equal(t, ":9090", c.GatewayAddr)
	assert.Equal(t, 0.4, c.Temperature)
	assert.Equal(t, int64(128), c.MaxTokens)
	assert.Equal(t, []string{"a", "b", "c"}, c.StopSequences)
	assert.True(t, c.CaptureReasoning)
}

func TestSamplingParams(t *testing.T) {
	c := Load()
	p := c.SamplingParams()
	assert.Equal(t, c.Temperature, p.Temperature)
	assert.Equal(t, c.MaxTokens, p.MaxTokens)
}
