package execution

import (
	"context"
	"fmt"

	"binance-backtest-bot-go/internal/exchange"
	"binance-backtest-bot-go/internal/risk"
	"binance-backtest-bot-go/internal/strategy"
	"go.uber.org/zap"
)

// Executor turns strategy signals into orders on an exchange client. Entry
// signals carrying stop/take levels are sized through the risk gate;
// otherwise the configured default quantity is used. Exit signals close the
// currently reported position size, so they always match exactly.
type Executor struct {
	client     exchange.Client
	gate       *risk.Gate
	logger     *zap.Logger
	defaultQty float64
}

// NewExecutor creates an executor. gate may be nil to disable risk sizing.
func NewExecutor(client exchange.Client, gate *risk.Gate, defaultQty float64, logger *zap.Logger) *Executor {
	return &Executor{
		client:     client,
		gate:       gate,
		logger:     logger,
		defaultQty: defaultQty,
	}
}

// Execute routes a signal for symbol. Hold returns (nil, nil); so does an
// exit with no open position.
func (e *Executor) Execute(ctx context.Context, symbol string, sig strategy.Signal) (*exchange.Order, error) {
	switch sig.Action {
	case strategy.EnterLong:
		return e.enter(ctx, symbol, exchange.OrderSideBuy, sig)
	case strategy.EnterShort:
		return e.enter(ctx, symbol, exchange.OrderSideSell, sig)
	case strategy.ExitLong:
		return e.exit(ctx, symbol, exchange.OrderSideSell)
	case strategy.ExitShort:
		return e.exit(ctx, symbol, exchange.OrderSideBuy)
	default:
		return nil, nil
	}
}

func (e *Executor) enter(ctx context.Context, symbol string, side exchange.OrderSide, sig strategy.Signal) (*exchange.Order, error) {
	quantity := e.defaultQty

	if stop, take, ok := riskLevels(sig); ok && e.gate != nil {
		equity, err := e.totalEquity(ctx)
		if err != nil {
			return nil, err
		}
		req, err := e.gate.Evaluate(risk.TradeSignal{
			Symbol:          symbol,
			Side:            string(side),
			EntryPrice:      sig.Price,
			StopLossPrice:   stop,
			TakeProfitPrice: take,
		}, risk.AccountBalance{TotalEquity: equity})
		if err != nil {
			return nil, fmt.Errorf("signal rejected by risk gate: %w", err)
		}
		quantity = req.Quantity
	}

	order, err := e.client.CreateOrder(ctx, exchange.CreateOrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     exchange.OrderTypeMarket,
		Quantity: quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("entry order failed: %w", err)
	}

	e.logger.Info("Entry order filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", quantity),
		zap.Float64("price", order.Price),
	)
	return &order, nil
}

func (e *Executor) exit(ctx context.Context, symbol string, side exchange.OrderSide) (*exchange.Order, error) {
	positions, err := e.client.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch positions: %w", err)
	}

	var open *exchange.PositionInfo
	for i := range positions {
		if positions[i].Symbol == symbol {
			open = &positions[i]
			break
		}
	}
	if open == nil {
		e.logger.Debug("Exit signal with no open position", zap.String("symbol", symbol))
		return nil, nil
	}

	order, err := e.client.CreateOrder(ctx, exchange.CreateOrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     exchange.OrderTypeMarket,
		Quantity: open.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("exit order failed: %w", err)
	}

	e.logger.Info("Exit order filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", open.Size),
	)
	return &order, nil
}

// totalEquity sums the account's total balances across assets.
func (e *Executor) totalEquity(ctx context.Context) (float64, error) {
	balances, err := e.client.GetBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not fetch balance: %w", err)
	}
	equity := 0.0
	for _, b := range balances {
		equity += b.Total
	}
	return equity, nil
}

// riskLevels extracts stop/take levels a strategy attached to its signal.
func riskLevels(sig strategy.Signal) (stop, take float64, ok bool) {
	if sig.Metadata == nil {
		return 0, 0, false
	}
	stop, sok := sig.Metadata["stop_loss"].(float64)
	take, tok := sig.Metadata["take_profit"].(float64)
	return stop, take, sok && tok
}
