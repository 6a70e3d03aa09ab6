package strategy

import "binance-backtest-bot-go/internal/market"

// MacdHistogram trades reversals of the MACD histogram: a valley in negative
// territory (falling then rising) enters long, a peak in positive territory
// (rising then falling) enters short. It emits entries only and relies on
// reversal handling to exit.
type MacdHistogram struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMacdHistogram creates the strategy with the standard 12/26/9 periods.
func NewMacdHistogram() *MacdHistogram {
	return &MacdHistogram{
		fastPeriod:   12,
		slowPeriod:   26,
		signalPeriod: 9,
	}
}

func (s *MacdHistogram) Name() string { return NameMacdHistogram }

func (s *MacdHistogram) OnInit() error { return nil }

func (s *MacdHistogram) Analyze(candles []market.Candle) (Signal, error) {
	signal := holdSignal(candles)

	results := MACDSeries(closePrices(candles), s.fastPeriod, s.slowPeriod, s.signalPeriod)
	if len(results) < 3 {
		return signal, nil
	}

	hCurrent := results[len(results)-1].Histogram
	hPrev1 := results[len(results)-2].Histogram
	hPrev2 := results[len(results)-3].Histogram

	switch {
	case hCurrent < 0 && hPrev1 < 0 && hPrev2 < 0:
		// Valley: down then up, all below zero.
		if hPrev2 > hPrev1 && hPrev1 < hCurrent {
			signal.Action = EnterLong
			signal.Metadata = map[string]any{
				"reason":    "MACD Histogram Valley (Reversal Up)",
				"histogram": hCurrent,
			}
		}
	case hCurrent > 0 && hPrev1 > 0 && hPrev2 > 0:
		// Peak: up then down, all above zero.
		if hPrev2 < hPrev1 && hPrev1 > hCurrent {
			signal.Action = EnterShort
			signal.Metadata = map[string]any{
				"reason":    "MACD Histogram Peak (Reversal Down)",
				"histogram": hCurrent,
			}
		}
	}

	return signal, nil
}
