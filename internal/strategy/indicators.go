package strategy

import (
	"math"

	"binance-backtest-bot-go/internal/market"
)

// SMA calculates the Simple Moving Average over the last period prices.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		period = len(prices)
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average over all prices, seeded with
// an SMA of the first period values.
func EMA(prices []float64, period int) float64 {
	series := EMASeries(prices, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries returns one EMA value per price starting at index period-1.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) < period || period <= 0 {
		return nil
	}

	multiplier := 2.0 / float64(period+1)
	series := make([]float64, 0, len(prices)-period+1)

	ema := SMA(prices[:period], period)
	series = append(series, ema)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		series = append(series, ema)
	}
	return series
}

// MACDValue is one point of a MACD series.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACDSeries computes the MACD line (fast EMA - slow EMA), its signal EMA and
// the histogram. One value is returned per candle once both the slow EMA and
// the signal EMA have converged.
func MACDSeries(prices []float64, fastPeriod, slowPeriod, signalPeriod int) []MACDValue {
	fast := EMASeries(prices, fastPeriod)
	slow := EMASeries(prices, slowPeriod)
	if len(slow) == 0 {
		return nil
	}

	// Align the fast series with the slow one; slow starts later.
	offset := slowPeriod - fastPeriod
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signalLine := EMASeries(macdLine, signalPeriod)
	if len(signalLine) == 0 {
		return nil
	}

	sigOffset := len(macdLine) - len(signalLine)
	out := make([]MACDValue, len(signalLine))
	for i := range signalLine {
		m := macdLine[i+sigOffset]
		out[i] = MACDValue{
			MACD:      m,
			Signal:    signalLine[i],
			Histogram: m - signalLine[i],
		}
	}
	return out
}

// RSI calculates the Relative Strength Index for the latest price, using a
// simple average of gains and losses over the last period changes. Returns a
// neutral 50 when there is not enough data.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}

	gains := 0.0
	losses := 0.0
	start := len(prices) - period
	for i := start; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += math.Abs(change)
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// closePrices extracts close prices from a candle window.
func closePrices(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
