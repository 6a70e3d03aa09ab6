package execution

import (
	"context"
	"testing"

	"binance-backtest-bot-go/internal/exchange"
	"binance-backtest-bot-go/internal/risk"
	"binance-backtest-bot-go/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingClient implements exchange.Client and records created orders.
type recordingClient struct {
	orders    []exchange.CreateOrderRequest
	positions []exchange.PositionInfo
	balances  []exchange.Balance
}

func (r *recordingClient) CreateOrder(_ context.Context, req exchange.CreateOrderRequest) (exchange.Order, error) {
	r.orders = append(r.orders, req)
	return exchange.Order{
		ID:     "1",
		Symbol: req.Symbol,
		Side:   req.Side,
		Status: exchange.OrderStatusFilled,
		Price:  100,
	}, nil
}

func (r *recordingClient) CancelOrder(context.Context, string, string) error { return nil }

func (r *recordingClient) GetPositions(context.Context) ([]exchange.PositionInfo, error) {
	return r.positions, nil
}

func (r *recordingClient) GetBalance(context.Context) ([]exchange.Balance, error) {
	return r.balances, nil
}

func (r *recordingClient) GetTradeHistory(context.Context, string) ([]exchange.Fill, error) {
	return nil, nil
}

func TestExecutorExecute(t *testing.T) {
	ctx := context.Background()
	gate := risk.NewGate(risk.Config{
		RiskPerTradePercent: 0.01,
		MaxLeverage:         5,
		RewardToRiskRatio:   1.5,
	}, zap.NewNop())

	t.Run("HoldDoesNothing", func(t *testing.T) {
		client := &recordingClient{}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		order, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{Action: strategy.Hold})
		require.NoError(t, err)
		assert.Nil(t, order)
		assert.Empty(t, client.orders)
	})

	t.Run("EntryUsesDefaultQuantity", func(t *testing.T) {
		client := &recordingClient{}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		order, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{Action: strategy.EnterLong, Price: 100})
		require.NoError(t, err)
		require.NotNil(t, order)
		require.Len(t, client.orders, 1)
		assert.Equal(t, exchange.OrderSideBuy, client.orders[0].Side)
		assert.Equal(t, 0.001, client.orders[0].Quantity)
	})

	t.Run("EntryWithRiskLevelsSizedByGate", func(t *testing.T) {
		client := &recordingClient{balances: []exchange.Balance{{Asset: "USDT", Total: 10000}}}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		_, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{
			Action: strategy.EnterLong,
			Price:  100,
			Metadata: map[string]any{
				"stop_loss":   95.0,
				"take_profit": 110.0,
			},
		})
		require.NoError(t, err)
		require.Len(t, client.orders, 1)
		assert.InDelta(t, 20.0, client.orders[0].Quantity, 1e-9)
	})

	t.Run("EntryRejectedByGate", func(t *testing.T) {
		client := &recordingClient{balances: []exchange.Balance{{Asset: "USDT", Total: 10000}}}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		_, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{
			Action: strategy.EnterShort,
			Price:  100,
			Metadata: map[string]any{
				"stop_loss":   105.0,
				"take_profit": 103.0, // reward:risk 0.6
			},
		})
		assert.ErrorIs(t, err, risk.ErrRewardRiskTooLow)
		assert.Empty(t, client.orders)
	})

	t.Run("ExitClosesReportedSize", func(t *testing.T) {
		client := &recordingClient{positions: []exchange.PositionInfo{
			{Symbol: "BTCUSDT", Size: 0.25},
		}}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		order, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{Action: strategy.ExitLong})
		require.NoError(t, err)
		require.NotNil(t, order)
		require.Len(t, client.orders, 1)
		assert.Equal(t, exchange.OrderSideSell, client.orders[0].Side)
		assert.Equal(t, 0.25, client.orders[0].Quantity)
	})

	t.Run("ExitWithoutPositionIsNoOp", func(t *testing.T) {
		client := &recordingClient{}
		ex := NewExecutor(client, gate, 0.001, zap.NewNop())

		order, err := ex.Execute(ctx, "BTCUSDT", strategy.Signal{Action: strategy.ExitShort})
		require.NoError(t, err)
		assert.Nil(t, order)
		assert.Empty(t, client.orders)
	})
}
