package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

const dayLayout = "2006-01-02"

// Provider fetches daily close history for a ticker.
type Provider interface {
	DailyCloses(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error)
	Health(ctx context.Context) error
}

// BinanceConfig contains configuration for the Binance provider.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	// Quote is appended to bare tickers to form a trading pair
	// (BTC -> BTCUSDT). Defaults to USDT.
	Quote             string
	RequestsPerSecond float64
	Burst             int
	Testnet           bool
}

// BinanceProvider fetches daily klines from Binance.
type BinanceProvider struct {
	client  *binance.Client
	limiter *rate.Limiter
	quote   string
}

// NewBinanceProvider creates a rate-limited Binance market data client.
func NewBinanceProvider(config BinanceConfig) *BinanceProvider {
	client := binance.NewClient(config.APIKey, config.SecretKey)
	if config.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("Binance market data provider initialized (TESTNET mode)")
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 20
	}
	quote := strings.ToUpper(strings.TrimSpace(config.Quote))
	if quote == "" {
		quote = "USDT"
	}

	return &BinanceProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		quote:   quote,
	}
}

// pair maps a bare ticker to its Binance trading pair.
func (p *BinanceProvider) pair(ticker string) string {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasSuffix(symbol, p.quote) {
		return symbol
	}
	return symbol + p.quote
}

// DailyCloses fetches up to days completed daily closes, oldest first.
func (p *BinanceProvider) DailyCloses(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	symbol := p.pair(ticker)

	// Ask for one extra candle so the still-open day can be dropped.
	start := time.Now()
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		Limit(days + 1).
		Do(ctx)
	metrics.RecordProviderRequest("binance", float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	points, err := klinesToPoints(klines, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to convert klines for %s: %w", symbol, err)
	}
	if len(points) > days {
		points = points[len(points)-days:]
	}

	log.Debug().
		Str("ticker", ticker).
		Str("symbol", symbol).
		Int("points", len(points)).
		Msg("Fetched daily closes from Binance")

	return points, nil
}

// klinesToPoints converts klines to dated closes, skipping candles that
// have not closed yet.
func klinesToPoints(klines []*binance.Kline, now time.Time) ([]risk.PricePoint, error) {
	points := make([]risk.PricePoint, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		if time.UnixMilli(k.CloseTime).After(now) {
			continue
		}
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid close price %q: %w", k.Close, err)
		}
		points = append(points, risk.PricePoint{
			Date:  time.UnixMilli(k.OpenTime).UTC().Format(dayLayout),
			Close: closePrice,
		})
	}
	return points, nil
}

// Health pings the Binance API.
func (p *BinanceProvider) Health(ctx context.Context) error {
	if err := p.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("binance ping failed: %w", err)
	}
	return nil
}
