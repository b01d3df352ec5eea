package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/looplj/harmonygate/llm"
)

func TestTracker_Summary(t *testing.T) {
	tr := NewTracker()

	ttft1 := int64(50)
	ttft2 := int64(150)

	tr.Record(llm.GenerationMetrics{LatencyMS: 100, TokensPerSecond: 20, TTFTMs: &ttft1})
	tr.Record(llm.GenerationMetrics{LatencyMS: 300, TokensPerSecond: 10, TTFTMs: &ttft2})

	s := tr.Summary()
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, int64(100), s.MinLatencyMS)
	assert.Equal(t, int64(300), s.MaxLatencyMS)
	assert.Equal(t, float64(200), s.AvgLatencyMS)
	assert.Equal(t, float64(15), s.AvgTokensPerSecond)
	assert.Equal(t, float64(100), s.AvgTTFTMs)
}

func TestTracker_Summary_Empty(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, Summary{}, tr.Summary())
}
