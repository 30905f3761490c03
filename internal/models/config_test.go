package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Seed:         42,
		NumNodes:     10,
		NumEdges:     20,
		NumDrivers:   2,
		Distribution: DistributionUniform,
		OrderRateMin: 0.01,
		OrderRateMax: 0.05,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	negative := validConfig()
	negative.NumNodes = -1
	require.ErrorIs(t, negative.Validate(), ErrValidation)

	badDist := validConfig()
	badDist.Distribution = "clustered"
	require.ErrorIs(t, badDist.Validate(), ErrValidation)

	badRates := validConfig()
	badRates.OrderRateMin = 0.5
	badRates.OrderRateMax = 0.1
	require.ErrorIs(t, badRates.Validate(), ErrValidation)

	badDrivers := validConfig()
	badDrivers.NumDrivers = -3
	require.ErrorIs(t, badDrivers.Validate(), ErrValidation)

	// a sparse edge target is repaired by the synthesizer, not rejected
	sparse := validConfig()
	sparse.NumEdges = 0
	require.NoError(t, sparse.Validate())
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DistributionUniform, cfg.Distribution)
	assert.Equal(t, DefaultOrderRateMin, cfg.OrderRateMin)
	assert.Equal(t, DefaultOrderRateMax, cfg.OrderRateMax)
	assert.Equal(t, DefaultMaxPendingObs, cfg.MaxPendingObs)
	assert.Equal(t, DefaultTickInterval, cfg.TickInterval)
}

func TestApplyDefaultsKeepsPartialRateRange(t *testing.T) {
	// an explicit min with a missing max is a config mistake; it must
	// reach Validate intact instead of being overwritten
	cfg := &Config{Distribution: DistributionUniform, OrderRateMin: 0.2}
	cfg.ApplyDefaults()

	assert.Equal(t, 0.2, cfg.OrderRateMin)
	assert.Zero(t, cfg.OrderRateMax)
	require.ErrorIs(t, cfg.Validate(), ErrValidation)

	// max alone is a valid range starting at zero
	cfg = &Config{Distribution: DistributionUniform, OrderRateMax: 0.5}
	cfg.ApplyDefaults()
	assert.Zero(t, cfg.OrderRateMin)
	assert.Equal(t, 0.5, cfg.OrderRateMax)
	require.NoError(t, cfg.Validate())
}
