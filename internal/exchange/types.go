package exchange

import (
	"context"
	"errors"

	"binance-backtest-bot-go/internal/market"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// CreateOrderRequest is the order the execution layer submits.
type CreateOrderRequest struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Quantity float64
	// Price is required for limit orders.
	Price float64
}

// Order is the exchange's view of a submitted order.
type Order struct {
	ID               string
	Symbol           string
	Side             OrderSide
	Type             OrderType
	Status           OrderStatus
	OriginalQuantity float64
	FilledQuantity   float64
	Price            float64
	AveragePrice     float64
	Timestamp        int64
}

// PositionInfo is an open-position snapshot as exchanges report it.
type PositionInfo struct {
	Symbol        string
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
	Leverage      float64
}

// Balance is a per-asset account balance.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
	Total  float64
}

// Fill is a single executed trade as reported by trade history.
type Fill struct {
	ID          int64
	OrderID     int64
	Symbol      string
	Side        OrderSide
	Price       float64
	Quantity    float64
	RealizedPnl float64
	Timestamp   int64
}

var (
	// ErrPriceUnavailable is returned for market orders before any tick has
	// been observed for the symbol.
	ErrPriceUnavailable = errors.New("market price unavailable")
	// ErrUnsupportedPendingOrder is returned for limit orders that are not
	// immediately fillable against the last price.
	ErrUnsupportedPendingOrder = errors.New("pending limit orders not supported")
	// ErrUnsupportedPartialOrFlip is returned for opposite-side orders whose
	// quantity does not exactly match the open position.
	ErrUnsupportedPartialOrFlip = errors.New("partial close or flip not supported")
)

// Client is the order-routing boundary. The paper gateway and the real
// exchange client both satisfy it, so callers cannot tell simulation from
// live trading.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	GetPositions(ctx context.Context) ([]PositionInfo, error)
	GetBalance(ctx context.Context) ([]Balance, error)
	GetTradeHistory(ctx context.Context, symbol string) ([]Fill, error)
}

// MarketStream is the live market-data boundary. Implementations own
// reconnection; returned channels stay valid across reconnects.
type MarketStream interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SubscribeTicker(symbol string) (<-chan market.Ticker, error)
	SubscribeCandles(symbol, interval string) (<-chan market.Candle, error)
}
