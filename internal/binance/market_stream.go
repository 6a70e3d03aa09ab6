package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"binance-backtest-bot-go/internal/exchange"
	"binance-backtest-bot-go/internal/market"
)

const (
	StreamBaseURL        = "wss://fstream.binance.com/ws"
	TestnetStreamBaseURL = "wss://stream.binancefuture.com/ws"

	reconnectDelay     = 5 * time.Second
	subscribeRetryWait = 1 * time.Second
	writeTimeout       = 10 * time.Second
	subscriberBuffer   = 64
)

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// MarketStream is a reconnecting websocket client for Binance futures market
// data. Subscriptions are kept in a registry and replayed after every
// reconnect, so consumers keep receiving on the channel they were given even
// when the underlying connection is replaced.
type MarketStream struct {
	baseURL string
	logger  *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	state      connState
	reconnect  *time.Timer
	closed     bool
	requestSeq int64

	candleSubs map[string]chan market.Candle
	tickerSubs map[string]chan market.Ticker

	ctx    context.Context
	cancel context.CancelFunc
}

var _ exchange.MarketStream = (*MarketStream)(nil)

func NewMarketStream(testnet bool, logger *zap.Logger) *MarketStream {
	baseURL := StreamBaseURL
	if testnet {
		baseURL = TestnetStreamBaseURL
	}
	return &MarketStream{
		baseURL:    baseURL,
		logger:     logger,
		candleSubs: make(map[string]chan market.Candle),
		tickerSubs: make(map[string]chan market.Ticker),
	}
}

// Connect dials the stream endpoint and starts the read loop. On read
// failure the stream schedules a single reconnect attempt and replays all
// registered subscriptions once the connection is back up.
func (s *MarketStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateDisconnected {
		return nil
	}
	s.closed = false
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s.dialLocked()
}

func (s *MarketStream) dialLocked() error {
	s.state = stateConnecting
	s.logger.Info("Connecting to market stream", zap.String("url", s.baseURL))

	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.baseURL, nil)
	if err != nil {
		s.state = stateDisconnected
		s.scheduleReconnectLocked()
		return fmt.Errorf("dial market stream: %w", err)
	}

	s.conn = conn
	s.state = stateConnected
	s.logger.Info("Market stream connected")

	go s.readLoop(conn)
	s.resubscribeLocked()
	return nil
}

// scheduleReconnectLocked arms the reconnect timer. The stream owns a single
// timer; an already armed timer is left alone so overlapping failures cannot
// stack reconnect attempts.
func (s *MarketStream) scheduleReconnectLocked() {
	if s.closed || s.reconnect != nil {
		return
	}
	s.logger.Warn("Market stream down, reconnecting",
		zap.Duration("delay", reconnectDelay),
	)
	s.reconnect = time.AfterFunc(reconnectDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.reconnect = nil
		if s.closed || s.state != stateDisconnected {
			return
		}
		if err := s.dialLocked(); err != nil {
			s.logger.Error("Market stream reconnect failed", zap.Error(err))
		}
	})
}

// Disconnect tears the connection down and releases every subscriber
// channel. The stream cannot be reused afterwards.
func (s *MarketStream) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.state = stateDisconnected

	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}

	for key, ch := range s.candleSubs {
		close(ch)
		delete(s.candleSubs, key)
	}
	for key, ch := range s.tickerSubs {
		close(ch)
		delete(s.tickerSubs, key)
	}

	s.logger.Info("Market stream disconnected")
	return err
}

// SubscribeCandles registers for kline updates of symbol at interval. The
// returned channel stays valid across reconnects and is closed on
// Disconnect.
func (s *MarketStream) SubscribeCandles(symbol, interval string) (<-chan market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("market stream is closed")
	}

	key := candleKey(symbol, interval)
	if ch, ok := s.candleSubs[key]; ok {
		return ch, nil
	}

	ch := make(chan market.Candle, subscriberBuffer)
	s.candleSubs[key] = ch
	go s.subscribeWithRetry(fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval))
	return ch, nil
}

// SubscribeTicker registers for mark price updates of symbol.
func (s *MarketStream) SubscribeTicker(symbol string) (<-chan market.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("market stream is closed")
	}

	key := strings.ToUpper(symbol)
	if ch, ok := s.tickerSubs[key]; ok {
		return ch, nil
	}

	ch := make(chan market.Ticker, subscriberBuffer)
	s.tickerSubs[key] = ch
	go s.subscribeWithRetry(fmt.Sprintf("%s@markPrice@1s", strings.ToLower(symbol)))
	return ch, nil
}

// subscribeWithRetry sends the SUBSCRIBE frame, waiting for the connection
// to come up first. Binance rejects frames on a half-open socket, so failed
// sends are retried until they go through or the stream is closed.
func (s *MarketStream) subscribeWithRetry(streamName string) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if s.state == stateConnected {
			err := s.sendSubscribeLocked([]string{streamName})
			s.mu.Unlock()
			if err == nil {
				return
			}
			s.logger.Warn("Subscribe failed, retrying",
				zap.String("stream", streamName),
				zap.Error(err),
			)
		} else {
			s.mu.Unlock()
		}
		time.Sleep(subscribeRetryWait)
	}
}

func (s *MarketStream) sendSubscribeLocked(streams []string) error {
	s.requestSeq++
	req := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     s.requestSeq,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// resubscribeLocked replays the full subscription registry onto a fresh
// connection.
func (s *MarketStream) resubscribeLocked() {
	streams := make([]string, 0, len(s.candleSubs)+len(s.tickerSubs))
	for key := range s.candleSubs {
		symbol, interval, _ := strings.Cut(key, "|")
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval))
	}
	for symbol := range s.tickerSubs {
		streams = append(streams, fmt.Sprintf("%s@markPrice@1s", strings.ToLower(symbol)))
	}
	if len(streams) == 0 {
		return
	}
	if err := s.sendSubscribeLocked(streams); err != nil {
		s.logger.Error("Resubscribe failed", zap.Error(err))
		return
	}
	s.logger.Info("Subscriptions replayed", zap.Strings("streams", streams))
}

func (s *MarketStream) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			// A stale loop from a connection we already replaced must
			// not flip the state of the current one.
			if s.conn == conn {
				s.conn = nil
				s.state = stateDisconnected
				if !s.closed {
					s.logger.Warn("Market stream read error", zap.Error(err))
					s.scheduleReconnectLocked()
				}
			}
			s.mu.Unlock()
			return
		}
		s.dispatch(payload)
	}
}

type streamEvent struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	MarkPrice string          `json:"p"`
	Kline     json.RawMessage `json:"k"`
}

type klinePayload struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsFinal   bool   `json:"x"`
}

func (s *MarketStream) dispatch(payload []byte) {
	var event streamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Debug("Dropping unparseable stream message", zap.Error(err))
		return
	}

	switch event.EventType {
	case "kline":
		s.dispatchKline(event.Kline)
	case "markPriceUpdate":
		s.dispatchTicker(event)
	}
}

func (s *MarketStream) dispatchKline(raw json.RawMessage) {
	var k klinePayload
	if err := json.Unmarshal(raw, &k); err != nil {
		s.logger.Debug("Dropping malformed kline", zap.Error(err))
		return
	}

	candle := market.Candle{
		Symbol:    strings.ToUpper(k.Symbol),
		Interval:  k.Interval,
		Open:      parsePrice(k.Open),
		High:      parsePrice(k.High),
		Low:       parsePrice(k.Low),
		Close:     parsePrice(k.Close),
		Volume:    parsePrice(k.Volume),
		Timestamp: k.OpenTime,
		CloseTime: k.CloseTime,
		IsFinal:   k.IsFinal,
	}

	s.mu.Lock()
	ch, ok := s.candleSubs[candleKey(k.Symbol, k.Interval)]
	s.mu.Unlock()
	if !ok {
		return
	}

	// Slow consumers lose the oldest updates rather than stalling the
	// read loop.
	select {
	case ch <- candle:
	default:
		s.logger.Warn("Candle subscriber lagging, dropping update",
			zap.String("symbol", candle.Symbol),
			zap.String("interval", candle.Interval),
		)
	}
}

func (s *MarketStream) dispatchTicker(event streamEvent) {
	ticker := market.Ticker{
		Symbol:    strings.ToUpper(event.Symbol),
		Price:     parsePrice(event.MarkPrice),
		Timestamp: event.EventTime,
	}

	s.mu.Lock()
	ch, ok := s.tickerSubs[ticker.Symbol]
	s.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- ticker:
	default:
		s.logger.Warn("Ticker subscriber lagging, dropping update",
			zap.String("symbol", ticker.Symbol),
		)
	}
}

func candleKey(symbol, interval string) string {
	return strings.ToUpper(symbol) + "|" + interval
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
