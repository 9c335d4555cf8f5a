package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderConfig_Cost(t *testing.T) {
	cfg := ProviderConfig{
		ID:               "openai",
		InputPricePer1K:  0.15,
		OutputPricePer1K: 0.60,
	}

	assert.InDelta(t, 0.0, cfg.Cost(0, 0), 1e-9)
	assert.InDelta(t, 0.15, cfg.Cost(1000, 0), 1e-9)
	assert.InDelta(t, 0.60, cfg.Cost(0, 1000), 1e-9)
	assert.InDelta(t, 0.075+0.30, cfg.Cost(500, 500), 1e-9)
}

func TestProviderConfig_Validate(t *testing.T) {
	valid := ProviderConfig{ID: "ollama"}
	require.NoError(t, valid.Validate())

	missing := ProviderConfig{}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidConfiguration)

	negative := ProviderConfig{ID: "openai", InputPricePer1K: -1}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidConfiguration)
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p := BackoffPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 500*time.Millisecond, p.Delay(3), "capped at MaxDelay")
	assert.Equal(t, 500*time.Millisecond, p.Delay(10), "stays capped")
}

func TestBackoffPolicy_DelayZeroBase(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 3}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Duration(0), p.Delay(4))
}

func TestBackoffPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultBackoffPolicy().Validate())

	zero := BackoffPolicy{MaxAttempts: 0}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidConfiguration)

	negative := BackoffPolicy{MaxAttempts: 1, BaseDelay: -time.Second}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidConfiguration)
}
