package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"binance-backtest-bot-go/internal/ledger"
	"go.uber.org/zap"
)

// PaperConfig parameterizes a paper-trading session.
type PaperConfig struct {
	InitialBalance  float64 `mapstructure:"initial_balance"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	SlippagePercent float64 `mapstructure:"slippage_percent"`
	DefaultLeverage float64 `mapstructure:"default_leverage"`
}

// PaperClient is an exchange-shaped client that fills orders synthetically
// against the last observed tick price and settles them into a margin-mode
// ledger. Each instance owns its own price cache and ledger, so concurrent
// sessions never interfere.
type PaperClient struct {
	cfg    PaperConfig
	stream MarketStream
	logger *zap.Logger

	mu         sync.Mutex
	book       *ledger.MarginLedger
	prices     map[string]float64
	subscribed map[string]bool
	orderSeq   int64
}

var _ Client = (*PaperClient)(nil)

// NewPaperClient creates a paper client fed by the given market stream.
func NewPaperClient(cfg PaperConfig, stream MarketStream, logger *zap.Logger) *PaperClient {
	if cfg.DefaultLeverage <= 0 {
		cfg.DefaultLeverage = 10
	}
	return &PaperClient{
		cfg:        cfg,
		stream:     stream,
		logger:     logger,
		book:       ledger.NewMarginLedger(cfg.InitialBalance, cfg.FeeRate, ledger.FeeExitOnly),
		prices:     make(map[string]float64),
		subscribed: make(map[string]bool),
	}
}

// ensureSubscribed lazily subscribes the price cache to a symbol's ticker
// stream. Repeated calls are harmless.
func (c *PaperClient) ensureSubscribed(symbol string) error {
	c.mu.Lock()
	if c.subscribed[symbol] {
		c.mu.Unlock()
		return nil
	}
	c.subscribed[symbol] = true
	c.mu.Unlock()

	ticks, err := c.stream.SubscribeTicker(symbol)
	if err != nil {
		c.mu.Lock()
		delete(c.subscribed, symbol)
		c.mu.Unlock()
		return fmt.Errorf("failed to subscribe ticker for %s: %w", symbol, err)
	}

	go func() {
		for tick := range ticks {
			c.mu.Lock()
			c.prices[tick.Symbol] = tick.Price
			c.mu.Unlock()
		}
	}()
	return nil
}

// CreateOrder fills the request immediately against the cached last price.
// Opposite-side orders with the exact open quantity close the position;
// same-side orders pyramid; anything else is rejected. A rejected order
// leaves the ledger and price cache untouched.
func (c *PaperClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if err := c.ensureSubscribed(req.Symbol); err != nil {
		return Order{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, hasPrice := c.prices[req.Symbol]
	price := last

	switch req.Type {
	case OrderTypeLimit:
		if req.Price <= 0 {
			return Order{}, fmt.Errorf("limit order for %s has no price", req.Symbol)
		}
		if hasPrice {
			// Only immediately fillable limits are honored.
			if req.Side == OrderSideBuy && req.Price < last {
				return Order{}, fmt.Errorf("%w: buy limit %.4f below last %.4f", ErrUnsupportedPendingOrder, req.Price, last)
			}
			if req.Side == OrderSideSell && req.Price > last {
				return Order{}, fmt.Errorf("%w: sell limit %.4f above last %.4f", ErrUnsupportedPendingOrder, req.Price, last)
			}
		}
		price = req.Price
	default:
		if !hasPrice {
			return Order{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, req.Symbol)
		}
	}

	side := ledger.Long
	if req.Side == OrderSideSell {
		side = ledger.Short
	}
	now := time.Now()

	if existing := c.book.OpenPosition(req.Symbol); existing != nil && existing.Side != side {
		if req.Quantity != existing.Quantity {
			return Order{}, fmt.Errorf("%w: order qty %.8f vs position qty %.8f",
				ErrUnsupportedPartialOrFlip, req.Quantity, existing.Quantity)
		}

		exitPrice := ledger.FillPrice(price, existing.Side, ledger.Exit, c.cfg.SlippagePercent)
		trade, err := c.book.Close(req.Symbol, exitPrice, now, "Order Signal")
		if err != nil {
			return Order{}, err
		}
		c.logger.Info("Paper position closed",
			zap.String("symbol", req.Symbol),
			zap.Float64("pnl", trade.Pnl),
			zap.Float64("pnl_percent", trade.PnlPercent),
		)
		return c.fill(req, exitPrice, now), nil
	}

	entryPrice := ledger.FillPrice(price, side, ledger.Entry, c.cfg.SlippagePercent)
	err := c.book.Open(ledger.Position{
		Symbol:     req.Symbol,
		Side:       side,
		EntryPrice: entryPrice,
		Quantity:   req.Quantity,
		Leverage:   c.cfg.DefaultLeverage,
		EntryTime:  now,
	})
	if err != nil {
		return Order{}, err
	}

	c.logger.Info("Paper position opened",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(side)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("quantity", req.Quantity),
	)
	return c.fill(req, entryPrice, now), nil
}

// fill builds the FILLED order response; callers hold c.mu.
func (c *PaperClient) fill(req CreateOrderRequest, price float64, now time.Time) Order {
	c.orderSeq++
	return Order{
		ID:               strconv.FormatInt(c.orderSeq, 10),
		Symbol:           req.Symbol,
		Side:             req.Side,
		Type:             req.Type,
		Status:           OrderStatusFilled,
		OriginalQuantity: req.Quantity,
		FilledQuantity:   req.Quantity,
		Price:            price,
		AveragePrice:     price,
		Timestamp:        now.UnixMilli(),
	}
}

// CancelOrder is a no-op: every paper order fills immediately or fails
// synchronously.
func (c *PaperClient) CancelOrder(ctx context.Context, id, symbol string) error {
	c.logger.Warn("cancelOrder called but paper trading fills immediately",
		zap.String("order_id", id),
		zap.String("symbol", symbol),
	)
	return nil
}

// GetPositions returns the open positions marked to the cached last price.
func (c *PaperClient) GetPositions(ctx context.Context) ([]PositionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	portfolio := c.book.Portfolio()
	out := make([]PositionInfo, 0, len(portfolio.OpenPositions))
	for _, p := range portfolio.OpenPositions {
		mark, ok := c.prices[p.Symbol]
		if !ok {
			mark = p.EntryPrice
		}
		out = append(out, PositionInfo{
			Symbol:        p.Symbol,
			Size:          p.Quantity,
			EntryPrice:    p.EntryPrice,
			MarkPrice:     mark,
			UnrealizedPnl: ledger.GrossPnL(p.Side, p.EntryPrice, mark, p.Quantity),
			Leverage:      p.Leverage,
		})
	}
	return out, nil
}

// GetBalance returns the session balance; Free excludes margin locked in open
// positions.
func (c *PaperClient) GetBalance(ctx context.Context) ([]Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	free := c.book.Balance()
	locked := c.book.LockedMargin()
	return []Balance{{
		Asset:  "USDT",
		Free:   free,
		Locked: locked,
		Total:  free + locked,
	}}, nil
}

// GetTradeHistory maps each closed round turn to a single exit fill; entry
// fills are not reported separately.
func (c *PaperClient) GetTradeHistory(ctx context.Context, symbol string) ([]Fill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Fill
	for _, t := range c.book.Portfolio().ClosedTrades {
		if t.Symbol != symbol {
			continue
		}
		side := OrderSideSell // closing a long sells
		if t.Side == ledger.Short {
			side = OrderSideBuy
		}
		out = append(out, Fill{
			ID:          t.ID,
			OrderID:     t.ID,
			Symbol:      t.Symbol,
			Side:        side,
			Price:       t.ExitPrice,
			Quantity:    t.Quantity,
			RealizedPnl: t.Pnl,
			Timestamp:   t.ExitTime.UnixMilli(),
		})
	}
	return out, nil
}

// Portfolio exposes the underlying ledger snapshot for reporting.
func (c *PaperClient) Portfolio() ledger.Portfolio {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.book.Portfolio()
}
