package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"binance-backtest-bot-go/internal/config"
	"binance-backtest-bot-go/internal/market"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://fapi.binance.com/fapi/v1"
	testnetBaseURL = "https://testnet.binancefuture.com/fapi/v1"
	recvWindow     = "5000" // How long a request is valid in milliseconds
	klineLimit     = 1000   // Max bars per /klines page
)

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]market.Candle, error)
	LoadCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Candle, error)
}

// RestClient is a client for the Binance futures REST API. It paces requests
// with a rate limiter and retries transient failures with backoff, so callers
// can page through large kline ranges without tripping limits.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Futures Testnet")
	} else {
		url = baseURL
		logger.Info("Using Binance Futures Production API")
	}

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

// SignParams appends timestamp, recvWindow and an HMAC-SHA256 signature to
// params. Market-data endpoints are unsigned; this is only needed for
// account-scoped requests.
func (c *RestClient) SignParams(params url.Values) url.Values {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)

	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(h.Sum(nil)))
	return params
}

// doRequest handles request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, "GET", "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// GetKlines fetches one page of klines. Binance serializes each bar as a
// mixed array: [openTime, open, high, low, close, volume, closeTime, ...].
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]market.Candle, error) {
	req := c.client.R().
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  interval,
			"startTime": strconv.FormatInt(startTime, 10),
			"endTime":   strconv.FormatInt(endTime, 10),
			"limit":     strconv.Itoa(limit),
		}).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, "GET", "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode klines response: %w", err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, interval, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// LoadCandles pages through /klines until the full [start, end) range is
// covered. The result is time-ordered with every bar final, which is what the
// backtest engine requires.
func (c *RestClient) LoadCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Candle, error) {
	var all []market.Candle
	currentStart := start.UnixMilli()
	endTime := end.UnixMilli()

	c.logger.Info("Fetching historical candles",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	for currentStart < endTime {
		page, err := c.GetKlines(ctx, symbol, interval, currentStart, endTime, klineLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		// Advance past the last bar's close time.
		currentStart = page[len(page)-1].CloseTime + 1

		if len(page) < klineLimit {
			break
		}
	}

	c.logger.Info("Fetched historical candles", zap.Int("count", len(all)))
	return all, nil
}

// parseKline maps one raw kline array entry to a Candle. Timestamps come back
// as numbers, prices as quoted strings.
func parseKline(symbol, interval string, k []json.RawMessage) (market.Candle, error) {
	if len(k) < 7 {
		return market.Candle{}, fmt.Errorf("kline entry too short: %d fields", len(k))
	}

	var openTime, closeTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return market.Candle{}, fmt.Errorf("bad kline open time: %w", err)
	}
	if err := json.Unmarshal(k[6], &closeTime); err != nil {
		return market.Candle{}, fmt.Errorf("bad kline close time: %w", err)
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return market.Candle{}, fmt.Errorf("bad kline field %d: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("bad kline number %q: %w", s, err)
		}
		prices[i-1] = v
	}

	return market.Candle{
		Symbol:    symbol,
		Interval:  interval,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		Timestamp: openTime,
		CloseTime: closeTime,
		IsFinal:   true, // historical bars are always final
	}, nil
}
