package bench_test

import (
	"testing"

	"github.com/fwojciec/bench"
	"github.com/stretchr/testify/assert"
)

func TestRole_Values(t *testing.T) {
	t.Parallel()
	assert.Equal(t, bench.Role("system"), bench.RoleSystem)
	assert.Equal(t, bench.Role("user"), bench.RoleUser)
	assert.Equal(t, bench.Role("assistant"), bench.RoleAssistant)
}

func TestStopReason_Values(t *testing.T) {
	t.Parallel()
	assert.Equal(t, bench.StopReason("end_turn"), bench.StopEndTurn)
	assert.Equal(t, bench.StopReason("length"), bench.StopLength)
	assert.Equal(t, bench.StopReason("error"), bench.StopError)
	assert.Equal(t, bench.StopReason("aborted"), bench.StopAborted)
	assert.Equal(t, bench.StopReason("unknown"), bench.StopUnknown)
}

func TestUsage_ZeroValue(t *testing.T) {
	t.Parallel()
	var u bench.Usage
	assert.True(t, u.IsZero())
	assert.Equal(t, 0, u.Processed())
}

func TestUsage_Processed(t *testing.T) {
	t.Parallel()
	u := bench.Usage{InputTokens: 100, OutputTokens: 50, CacheReadTokens: 900, CacheWriteTokens: 40}
	assert.Equal(t, 1050, u.Processed())
	assert.Equal(t, 1040, u.TotalInput())
	assert.False(t, u.IsZero())
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, bench.EstimateTokens(""))
	assert.Equal(t, 1, bench.EstimateTokens("abc"))
	assert.Equal(t, 2, bench.EstimateTokens("abcdefgh"))
	// Grapheme clusters, not bytes: four flags are four characters.
	assert.Equal(t, 1, bench.EstimateTokens("🇵🇱🇩🇪🇫🇷🇮🇹"))
}

func TestEstimateUsage(t *testing.T) {
	t.Parallel()
	req := bench.Request{Messages: []bench.Message{bench.UserText("abcdefghijklmnop")}}

	t.Run("from response text", func(t *testing.T) {
		t.Parallel()
		u := bench.EstimateUsage(req, "12345678")
		assert.Equal(t, bench.Usage{InputTokens: 4, OutputTokens: 2, Estimated: true}, u)
	})

	t.Run("empty response uses default output", func(t *testing.T) {
		t.Parallel()
		u := bench.EstimateUsage(req, "")
		assert.Equal(t, bench.DefaultEstimatedOutputTokens, u.OutputTokens)
		assert.True(t, u.Estimated)
	})
}
