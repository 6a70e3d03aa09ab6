package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	assert.Equal(t, 0.0, SMA(nil, 5))
	assert.InDelta(t, 2.0, SMA([]float64{1, 2, 3}, 3), 1e-9)
	// Shorter input falls back to averaging what is there.
	assert.InDelta(t, 2.0, SMA([]float64{1, 2, 3}, 10), 1e-9)
	// Only the trailing window counts.
	assert.InDelta(t, 4.0, SMA([]float64{100, 3, 4, 5}, 3), 1e-9)
}

func TestEMASeries(t *testing.T) {
	t.Run("NotEnoughData", func(t *testing.T) {
		assert.Nil(t, EMASeries([]float64{1, 2}, 3))
	})

	t.Run("SeededWithSMA", func(t *testing.T) {
		series := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
		require.Len(t, series, 3)
		assert.InDelta(t, 2.0, series[0], 1e-9)
		// multiplier = 0.5: 2 + (4-2)*0.5 = 3, 3 + (5-3)*0.5 = 4
		assert.InDelta(t, 3.0, series[1], 1e-9)
		assert.InDelta(t, 4.0, series[2], 1e-9)
	})

	t.Run("ConstantPricesStayFlat", func(t *testing.T) {
		prices := make([]float64, 30)
		for i := range prices {
			prices[i] = 42
		}
		assert.InDelta(t, 42.0, EMA(prices, 12), 1e-9)
	})
}

func TestMACDSeries(t *testing.T) {
	t.Run("NotEnoughData", func(t *testing.T) {
		assert.Nil(t, MACDSeries([]float64{1, 2, 3}, 12, 26, 9))
	})

	t.Run("ConstantPricesGiveZeroHistogram", func(t *testing.T) {
		prices := make([]float64, 60)
		for i := range prices {
			prices[i] = 100
		}
		series := MACDSeries(prices, 12, 26, 9)
		require.NotEmpty(t, series)
		last := series[len(series)-1]
		assert.InDelta(t, 0.0, last.MACD, 1e-9)
		assert.InDelta(t, 0.0, last.Histogram, 1e-9)
	})

	t.Run("RisingPricesPushMACDPositive", func(t *testing.T) {
		prices := make([]float64, 60)
		for i := range prices {
			prices[i] = 100 + float64(i)
		}
		series := MACDSeries(prices, 12, 26, 9)
		require.NotEmpty(t, series)
		assert.Greater(t, series[len(series)-1].MACD, 0.0)
	})
}

func TestRSI(t *testing.T) {
	t.Run("NeutralWhenShort", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI([]float64{1, 2, 3}, 14))
	})

	t.Run("AllGainsIsHundred", func(t *testing.T) {
		prices := make([]float64, 20)
		for i := range prices {
			prices[i] = float64(i)
		}
		assert.Equal(t, 100.0, RSI(prices, 14))
	})

	t.Run("AllLossesIsZero", func(t *testing.T) {
		prices := make([]float64, 20)
		for i := range prices {
			prices[i] = float64(100 - i)
		}
		assert.InDelta(t, 0.0, RSI(prices, 14), 1e-9)
	})

	t.Run("BalancedIsFifty", func(t *testing.T) {
		// Alternating +1/-1 changes.
		prices := make([]float64, 21)
		for i := range prices {
			prices[i] = 100 + float64(i%2)
		}
		assert.InDelta(t, 50.0, RSI(prices, 14), 1.0)
	})
}
