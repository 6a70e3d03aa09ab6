package strategy

import (
	"testing"
	"time"

	"binance-backtest-bot-go/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i, c := range closes {
		out[i] = market.Candle{
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Timestamp: base + int64(i)*3_600_000,
			IsFinal:   true,
		}
	}
	return out
}

// vShape returns a price series with an accelerating fall followed by a
// recovery, so the MACD histogram bottoms at the turn rather than during
// indicator warmup.
func vShape(fall, rise int) []float64 {
	prices := make([]float64, 0, fall+rise)
	p := 500.0
	step := 1.0
	for i := 0; i < fall; i++ {
		p -= step
		step += 0.2
		prices = append(prices, p)
	}
	for i := 0; i < rise; i++ {
		p += 2
		prices = append(prices, p)
	}
	return prices
}

func TestNewFactory(t *testing.T) {
	for _, name := range []string{NameMacdHistogram, NameMacdRsi, NameVolatilityBreakout} {
		s, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
		assert.NoError(t, s.OnInit())
	}

	_, err := New("MARTINGALE")
	assert.Error(t, err)
}

func TestMacdHistogramSignals(t *testing.T) {
	t.Run("HoldOnShortWindow", func(t *testing.T) {
		s := NewMacdHistogram()
		sig, err := s.Analyze(candlesFromCloses([]float64{100, 101, 102}))
		require.NoError(t, err)
		assert.Equal(t, Hold, sig.Action)
	})

	t.Run("ValleyEntersLong", func(t *testing.T) {
		s := NewMacdHistogram()
		candles := candlesFromCloses(vShape(50, 20))

		foundLong := false
		for i := 40; i <= len(candles); i++ {
			sig, err := s.Analyze(candles[:i])
			require.NoError(t, err)
			if sig.Action == EnterLong {
				foundLong = true
				assert.Contains(t, sig.Metadata["reason"], "Valley")
				break
			}
		}
		assert.True(t, foundLong, "expected a long entry after the trough")
	})
}

func TestMacdRsiSignals(t *testing.T) {
	t.Run("HoldOnShortWindow", func(t *testing.T) {
		s := NewMacdRsi()
		sig, err := s.Analyze(candlesFromCloses(vShape(20, 10)))
		require.NoError(t, err)
		assert.Equal(t, Hold, sig.Action)
	})

	t.Run("GoldenCrossAfterRecovery", func(t *testing.T) {
		s := NewMacdRsi()
		candles := candlesFromCloses(vShape(50, 30))

		foundLong := false
		for i := 50; i <= len(candles); i++ {
			sig, err := s.Analyze(candles[:i])
			require.NoError(t, err)
			if sig.Action == EnterLong || sig.Action == ExitShort {
				foundLong = true
				break
			}
		}
		assert.True(t, foundLong, "expected a golden cross on the recovery")
	})
}

func TestVolatilityBreakoutSignals(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// Yesterday ranged 90..110 (range 20); today opened at 100, so the
	// breakout target is 100 + 20*0.5 = 110.
	makeCandles := func(lastClose float64) []market.Candle {
		return []market.Candle{
			{Open: 100, High: 110, Low: 90, Close: 105, Timestamp: day1.UnixMilli()},
			{Open: 105, High: 108, Low: 95, Close: 100, Timestamp: day1.Add(12 * time.Hour).UnixMilli()},
			{Open: 100, High: 106, Low: 99, Close: 104, Timestamp: day2.UnixMilli()},
			{Open: 104, High: lastClose + 1, Low: 103, Close: lastClose, Timestamp: day2.Add(12 * time.Hour).UnixMilli()},
		}
	}

	s := NewVolatilityBreakout()

	t.Run("BreakoutEntersLong", func(t *testing.T) {
		sig, err := s.Analyze(makeCandles(111))
		require.NoError(t, err)
		assert.Equal(t, EnterLong, sig.Action)
		assert.InDelta(t, 110.0, sig.Metadata["target_price"].(float64), 1e-9)
	})

	t.Run("BelowTargetHolds", func(t *testing.T) {
		sig, err := s.Analyze(makeCandles(109))
		require.NoError(t, err)
		assert.Equal(t, Hold, sig.Action)
	})

	t.Run("NoPriorDayHolds", func(t *testing.T) {
		sig, err := s.Analyze(makeCandles(111)[2:])
		require.NoError(t, err)
		assert.Equal(t, Hold, sig.Action)
	})
}
