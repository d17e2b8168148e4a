package bench_test

import (
	"testing"

	"github.com/fwojciec/bench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Text(t *testing.T) {
	t.Parallel()
	m := bench.Message{Role: bench.RoleUser, Blocks: []bench.Block{{Text: "a"}, {Text: "b"}}}
	assert.Equal(t, "ab", m.Text())
	assert.Equal(t, "", bench.Message{}.Text())
	assert.Equal(t, "hi", bench.AssistantText("hi").Text())
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()
	temp := func(f float64) *float64 { return &f }
	valid := bench.Request{Messages: []bench.Message{bench.UserText("q")}}

	tests := []struct {
		name string
		req  bench.Request
		ok   bool
	}{
		{"valid", valid, true},
		{"temperature upper bound", bench.Request{Messages: valid.Messages, Temperature: temp(2)}, true},
		{"temperature too high", bench.Request{Messages: valid.Messages, Temperature: temp(2.1)}, false},
		{"negative temperature", bench.Request{Messages: valid.Messages, Temperature: temp(-0.1)}, false},
		{"negative max tokens", bench.Request{Messages: valid.Messages, MaxTokens: -1}, false},
		{"no messages", bench.Request{}, false},
		{"system message", bench.Request{Messages: []bench.Message{{Role: bench.RoleSystem}}}, false},
		{"unknown role", bench.Request{Messages: []bench.Message{{Role: "tool"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, bench.ErrValidation)
		})
	}
}

func TestRequest_PromptText(t *testing.T) {
	t.Parallel()
	req := bench.Request{
		System:   []bench.Block{{Text: "sys"}},
		Messages: []bench.Message{bench.UserText("q1"), bench.AssistantText("a1")},
	}
	assert.Equal(t, "sys\nq1\na1", req.PromptText())
	assert.Equal(t, "sys", req.SystemText())
}

func TestWithCachePrefix(t *testing.T) {
	t.Parallel()
	system := []bench.Block{{Text: "instructions"}, {Text: "document"}}
	req := bench.Request{System: system, Messages: []bench.Message{bench.UserText("q")}}

	cached := bench.WithCachePrefix(req)
	require.Len(t, cached.System, 2)
	assert.False(t, cached.System[0].CacheAffinity)
	assert.True(t, cached.System[1].CacheAffinity)
	assert.True(t, cached.HasCacheAffinity())

	// The caller's blocks are untouched.
	assert.False(t, system[1].CacheAffinity)
	assert.False(t, req.HasCacheAffinity())
}

func TestWithCachePrefix_NoSystem(t *testing.T) {
	t.Parallel()
	req := bench.Request{Messages: []bench.Message{bench.UserText("q")}}
	assert.False(t, bench.WithCachePrefix(req).HasCacheAffinity())
}

func TestStripCachePrefix(t *testing.T) {
	t.Parallel()
	req := bench.Request{
		System: []bench.Block{{Text: "doc", CacheAffinity: true}},
		Messages: []bench.Message{{
			Role:   bench.RoleUser,
			Blocks: []bench.Block{{Text: "q", CacheAffinity: true}},
		}},
	}
	plain := bench.StripCachePrefix(req)
	assert.False(t, plain.HasCacheAffinity())
	assert.Equal(t, req.PromptText(), plain.PromptText())
	assert.True(t, req.HasCacheAffinity())
}

func TestProviderError(t *testing.T) {
	t.Parallel()
	t.Run("type and message", func(t *testing.T) {
		t.Parallel()
		err := &bench.ProviderError{Provider: "anthropic", StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
		assert.Equal(t, "anthropic: rate_limit_error: slow down", err.Error())
		assert.ErrorIs(t, err, bench.ErrProvider)
	})

	t.Run("status only", func(t *testing.T) {
		t.Parallel()
		err := &bench.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}
		assert.Equal(t, "openai: HTTP 500: boom", err.Error())
	})

	t.Run("wraps cause", func(t *testing.T) {
		t.Parallel()
		cause := assert.AnError
		err := &bench.ProviderError{Provider: "gemini", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, bench.ErrProvider)
		assert.Equal(t, "gemini: "+cause.Error(), err.Error())
	})
}
