package risk

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRisk is returned when the stop-loss distance is zero.
	ErrInvalidRisk = errors.New("invalid risk: stop distance is zero")
	// ErrRewardRiskTooLow is returned when the signal's reward:risk ratio is
	// below the configured minimum.
	ErrRewardRiskTooLow = errors.New("reward:risk ratio too low")
)

// Config holds the risk limits applied to every order request.
type Config struct {
	// RiskPerTradePercent is the fraction of equity risked per trade (0.01 = 1%).
	RiskPerTradePercent float64 `mapstructure:"risk_per_trade_percent"`
	// MaxLeverage caps the implied leverage of a sized order.
	MaxLeverage float64 `mapstructure:"max_leverage"`
	// RewardToRiskRatio is the minimum acceptable reward:risk for an entry.
	RewardToRiskRatio float64 `mapstructure:"reward_to_risk_ratio"`
	// MaxDailyLossPercent is declared for operators but not enforced here.
	MaxDailyLossPercent float64 `mapstructure:"max_daily_loss_percent"`
}

// DefaultConfig mirrors the limits the bot ships with.
var DefaultConfig = Config{
	RiskPerTradePercent: 0.01,
	MaxLeverage:         5,
	RewardToRiskRatio:   1.5,
	MaxDailyLossPercent: 0.03,
}

// TradeSignal is the priced entry proposal a strategy hands to the gate.
type TradeSignal struct {
	Symbol          string
	Side            string
	EntryPrice      float64
	StopLossPrice   float64
	TakeProfitPrice float64
}

// AccountBalance is the equity snapshot used for sizing.
type AccountBalance struct {
	TotalEquity float64
}

// OrderRequest is a validated, sized order ready for the execution layer.
type OrderRequest struct {
	Symbol          string
	Side            string
	Quantity        float64
	EntryPrice      float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Leverage        float64
}

// PercentSizer sizes positions so that hitting the stop loses a fixed
// fraction of equity.
type PercentSizer struct {
	cfg Config
}

// NewPercentSizer creates a sizer with the given risk configuration.
func NewPercentSizer(cfg Config) *PercentSizer {
	return &PercentSizer{cfg: cfg}
}

// Calculate returns the position quantity for the given equity and stop
// distance. A zero distance returns 0 rather than propagating a division by
// zero.
func (s *PercentSizer) Calculate(equity, entryPrice, stopLossPrice float64) float64 {
	priceDiff := math.Abs(entryPrice - stopLossPrice)
	if priceDiff == 0 {
		return 0
	}
	return equity * s.cfg.RiskPerTradePercent / priceDiff
}

// Gate validates and sizes strategy signals into order requests.
type Gate struct {
	cfg    Config
	sizer  *PercentSizer
	logger *zap.Logger
}

// NewGate creates a risk gate.
func NewGate(cfg Config, logger *zap.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		sizer:  NewPercentSizer(cfg),
		logger: logger,
	}
}

// Evaluate turns a trade signal into a sized order request, rejecting signals
// whose stop distance is zero or whose reward:risk is below the configured
// minimum. Quantity is additionally capped so the implied leverage never
// exceeds MaxLeverage.
func (g *Gate) Evaluate(signal TradeSignal, balance AccountBalance) (OrderRequest, error) {
	riskDist := math.Abs(signal.EntryPrice - signal.StopLossPrice)
	if riskDist == 0 {
		return OrderRequest{}, fmt.Errorf("%w: entry %.4f equals stop", ErrInvalidRisk, signal.EntryPrice)
	}

	reward := math.Abs(signal.TakeProfitPrice - signal.EntryPrice)
	ratio := reward / riskDist
	if ratio < g.cfg.RewardToRiskRatio {
		return OrderRequest{}, fmt.Errorf("%w: %.2f < %.2f", ErrRewardRiskTooLow, ratio, g.cfg.RewardToRiskRatio)
	}

	quantity := g.sizer.Calculate(balance.TotalEquity, signal.EntryPrice, signal.StopLossPrice)

	// Cap quantity so positionValue/equity stays within MaxLeverage. This can
	// trigger when the stop sits very close to the entry.
	if g.cfg.MaxLeverage > 0 && balance.TotalEquity > 0 && signal.EntryPrice > 0 {
		maxQuantity := balance.TotalEquity * g.cfg.MaxLeverage / signal.EntryPrice
		if quantity > maxQuantity {
			g.logger.Warn("Capping order quantity to respect max leverage",
				zap.String("symbol", signal.Symbol),
				zap.Float64("sized_quantity", quantity),
				zap.Float64("capped_quantity", maxQuantity),
				zap.Float64("max_leverage", g.cfg.MaxLeverage),
			)
			quantity = maxQuantity
		}
	}

	return OrderRequest{
		Symbol:          signal.Symbol,
		Side:            signal.Side,
		Quantity:        quantity,
		EntryPrice:      signal.EntryPrice,
		StopLossPrice:   signal.StopLossPrice,
		TakeProfitPrice: signal.TakeProfitPrice,
		Leverage:        g.cfg.MaxLeverage,
	}, nil
}
