package exchange

import (
	"context"
	"testing"
	"time"

	"binance-backtest-bot-go/internal/ledger"
	"binance-backtest-bot-go/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStream hands out one ticker channel per symbol and records
// subscriptions.
type fakeStream struct {
	tickers map[string]chan market.Ticker
	subs    []string
}

func newFakeStream() *fakeStream {
	return &fakeStream{tickers: make(map[string]chan market.Ticker)}
}

func (f *fakeStream) Connect(ctx context.Context) error { return nil }
func (f *fakeStream) Disconnect() error                 { return nil }

func (f *fakeStream) SubscribeTicker(symbol string) (<-chan market.Ticker, error) {
	f.subs = append(f.subs, symbol)
	ch, ok := f.tickers[symbol]
	if !ok {
		ch = make(chan market.Ticker, 16)
		f.tickers[symbol] = ch
	}
	return ch, nil
}

func (f *fakeStream) SubscribeCandles(symbol, interval string) (<-chan market.Candle, error) {
	return make(chan market.Candle), nil
}

func newTestClient(t *testing.T) (*PaperClient, *fakeStream) {
	t.Helper()
	stream := newFakeStream()
	client := NewPaperClient(PaperConfig{
		InitialBalance:  10000,
		FeeRate:         0,
		DefaultLeverage: 10,
	}, stream, zap.NewNop())
	return client, stream
}

// setPrice seeds the client's cache the way an already-delivered tick would.
func setPrice(c *PaperClient, symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

func marketOrder(side OrderSide, qty float64) CreateOrderRequest {
	return CreateOrderRequest{Symbol: "BTCUSDT", Side: side, Type: OrderTypeMarket, Quantity: qty}
}

func TestPaperCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("MarketOrderWithoutPriceFails", func(t *testing.T) {
		client, stream := newTestClient(t)

		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		// The failed order must still have triggered a lazy subscription.
		assert.Equal(t, []string{"BTCUSDT"}, stream.subs)
	})

	t.Run("SubscriptionIsLazyAndIdempotent", func(t *testing.T) {
		client, stream := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.NoError(t, err)
		_, err = client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.NoError(t, err)
		assert.Equal(t, []string{"BTCUSDT"}, stream.subs)
	})

	t.Run("TickFeedsPriceCache", func(t *testing.T) {
		client, stream := newTestClient(t)

		// First order subscribes but fails (no price yet).
		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.ErrorIs(t, err, ErrPriceUnavailable)

		stream.tickers["BTCUSDT"] <- market.Ticker{Symbol: "BTCUSDT", Price: 50000, Timestamp: 1}

		require.Eventually(t, func() bool {
			_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
			return err == nil
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("OppositeExactQuantityCloses", func(t *testing.T) {
		client, _ := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.NoError(t, err)

		setPrice(client, "BTCUSDT", 55000)
		order, err := client.CreateOrder(ctx, marketOrder(OrderSideSell, 0.1))
		require.NoError(t, err)
		assert.Equal(t, OrderStatusFilled, order.Status)

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, positions)

		balances, err := client.GetBalance(ctx)
		require.NoError(t, err)
		// Margin 500 released plus 500 profit.
		assert.InDelta(t, 10500.0, balances[0].Total, 1e-9)
		assert.Zero(t, balances[0].Locked)
	})

	t.Run("SameSidePyramids", func(t *testing.T) {
		client, _ := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.NoError(t, err)
		_, err = client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.2))
		require.NoError(t, err)

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		assert.Len(t, positions, 2)

		balances, err := client.GetBalance(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 1500.0, balances[0].Locked, 1e-9)
	})

	t.Run("MismatchedOppositeQuantityRejected", func(t *testing.T) {
		client, _ := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
		require.NoError(t, err)

		_, err = client.CreateOrder(ctx, marketOrder(OrderSideSell, 0.05))
		assert.ErrorIs(t, err, ErrUnsupportedPartialOrFlip)

		// The rejected order left the book untouched.
		positions, _ := client.GetPositions(ctx)
		assert.Len(t, positions, 1)
	})

	t.Run("InsufficientBalanceRejected", func(t *testing.T) {
		client, _ := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		// Margin 50000*3/10 = 15000 > 10000.
		_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 3))
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	})

	t.Run("LimitOrders", func(t *testing.T) {
		client, _ := newTestClient(t)
		setPrice(client, "BTCUSDT", 50000)

		limit := func(side OrderSide, price float64) CreateOrderRequest {
			return CreateOrderRequest{
				Symbol: "BTCUSDT", Side: side, Type: OrderTypeLimit,
				Quantity: 0.1, Price: price,
			}
		}

		// Buy limit below last price would rest on the book.
		_, err := client.CreateOrder(ctx, limit(OrderSideBuy, 49000))
		assert.ErrorIs(t, err, ErrUnsupportedPendingOrder)

		// Buy limit at/above last fills at the limit price.
		order, err := client.CreateOrder(ctx, limit(OrderSideBuy, 50100))
		require.NoError(t, err)
		assert.Equal(t, 50100.0, order.Price)

		// Sell limit above last would rest too.
		_, err = client.CreateOrder(ctx, limit(OrderSideSell, 51000))
		assert.ErrorIs(t, err, ErrUnsupportedPendingOrder)
	})
}

func TestPaperReadProjections(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	setPrice(client, "BTCUSDT", 50000)

	_, err := client.CreateOrder(ctx, marketOrder(OrderSideBuy, 0.1))
	require.NoError(t, err)

	setPrice(client, "BTCUSDT", 55000)

	t.Run("PositionsMarkToLastPrice", func(t *testing.T) {
		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, 55000.0, positions[0].MarkPrice)
		assert.InDelta(t, 500.0, positions[0].UnrealizedPnl, 1e-9)
	})

	t.Run("TradeHistoryReportsExitFills", func(t *testing.T) {
		_, err := client.CreateOrder(ctx, marketOrder(OrderSideSell, 0.1))
		require.NoError(t, err)

		fills, err := client.GetTradeHistory(ctx, "BTCUSDT")
		require.NoError(t, err)
		require.Len(t, fills, 1)
		// Closing a long reports as a SELL fill at the exit price.
		assert.Equal(t, OrderSideSell, fills[0].Side)
		assert.Equal(t, 55000.0, fills[0].Price)
		assert.InDelta(t, 500.0, fills[0].RealizedPnl, 1e-9)

		other, err := client.GetTradeHistory(ctx, "ETHUSDT")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("CancelOrderIsNoOp", func(t *testing.T) {
		assert.NoError(t, client.CancelOrder(ctx, "1", "BTCUSDT"))
	})
}
