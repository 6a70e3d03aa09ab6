package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGate(cfg Config) *Gate {
	return NewGate(cfg, zap.NewNop())
}

func TestPercentSizer(t *testing.T) {
	sizer := NewPercentSizer(Config{RiskPerTradePercent: 0.01})

	t.Run("SizesToRiskAmount", func(t *testing.T) {
		// 10000 * 1% = 100 risked over a 5-point stop -> 20 units.
		assert.InDelta(t, 20.0, sizer.Calculate(10000, 100, 95), 1e-9)
	})

	t.Run("ZeroStopDistanceReturnsZero", func(t *testing.T) {
		assert.Zero(t, sizer.Calculate(10000, 100, 100))
	})
}

func TestGateEvaluate(t *testing.T) {
	cfg := Config{
		RiskPerTradePercent: 0.01,
		MaxLeverage:         5,
		RewardToRiskRatio:   1.5,
	}

	t.Run("ValidSignal", func(t *testing.T) {
		req, err := testGate(cfg).Evaluate(TradeSignal{
			Symbol:          "BTCUSDT",
			Side:            "BUY",
			EntryPrice:      100,
			StopLossPrice:   95,
			TakeProfitPrice: 110,
		}, AccountBalance{TotalEquity: 10000})

		require.NoError(t, err)
		assert.InDelta(t, 20.0, req.Quantity, 1e-9)
		assert.Equal(t, 5.0, req.Leverage)
	})

	t.Run("ZeroStopDistance", func(t *testing.T) {
		_, err := testGate(cfg).Evaluate(TradeSignal{
			EntryPrice:      100,
			StopLossPrice:   100,
			TakeProfitPrice: 110,
		}, AccountBalance{TotalEquity: 10000})

		assert.ErrorIs(t, err, ErrInvalidRisk)
	})

	t.Run("RewardRiskTooLow", func(t *testing.T) {
		// reward 5 / risk 5 = 1.0 < 1.5
		_, err := testGate(cfg).Evaluate(TradeSignal{
			EntryPrice:      100,
			StopLossPrice:   95,
			TakeProfitPrice: 105,
		}, AccountBalance{TotalEquity: 10000})

		assert.ErrorIs(t, err, ErrRewardRiskTooLow)
	})

	t.Run("QuantityCappedByMaxLeverage", func(t *testing.T) {
		// A 0.1-point stop would size 1000 units = 10x leverage; the cap
		// reduces it to 5x worth.
		req, err := testGate(cfg).Evaluate(TradeSignal{
			Symbol:          "BTCUSDT",
			EntryPrice:      100,
			StopLossPrice:   99.9,
			TakeProfitPrice: 101,
		}, AccountBalance{TotalEquity: 10000})

		require.NoError(t, err)
		assert.InDelta(t, 500.0, req.Quantity, 1e-9) // 10000*5/100
	})
}
