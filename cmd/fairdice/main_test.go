package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairdice/internal/config"
)

func TestSideMultipliers(t *testing.T) {
	cfg := &config.Config{
		Game: config.GameConfig{
			Sides: map[string]float64{
				"2":  5,
				"6":  2.5,
				"12": 1.25,
			},
		},
	}

	multipliers := sideMultipliers(cfg)
	require.Len(t, multipliers, 3)
	assert.True(t, decimal.NewFromInt(5).Equal(multipliers[2]))
	assert.True(t, decimal.NewFromFloat(2.5).Equal(multipliers[6]))
	assert.True(t, decimal.NewFromFloat(1.25).Equal(multipliers[12]))
}
