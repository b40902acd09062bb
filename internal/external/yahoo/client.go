package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/httputil"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// Client talks to the public chart and search endpoints
// ⭐ SSOT: every market-data provider call goes through this client
type Client struct {
	httpClient    *httputil.Client
	logger        *logger.Logger
	chartBaseURL  string
	searchBaseURL string
	newsCount     int
}

// NewClient creates a new provider client
func NewClient(httpClient *httputil.Client, chartBaseURL, searchBaseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		logger:        log.Module("yahoo"),
		chartBaseURL:  chartBaseURL,
		searchBaseURL: searchBaseURL,
		newsCount:     20,
	}
}

// classify maps transport outcomes onto the shared error kinds
func classify(symbol string, err error) error {
	var statusErr *httputil.StatusError
	switch {
	case errors.Is(err, httputil.ErrDecode):
		return fmt.Errorf("%s: %w: %w", symbol, contracts.ErrSchemaMismatch, err)
	case errors.Is(err, httputil.ErrRetriesExhausted):
		return fmt.Errorf("%s: %w: %w", symbol, contracts.ErrTransientFetch, err)
	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusBadRequest):
		return fmt.Errorf("%s: %w (status %d)", symbol, contracts.ErrDataUnavailable, statusErr.StatusCode)
	case errors.As(err, &statusErr):
		return fmt.Errorf("%s: %w: %w", symbol, contracts.ErrTransientFetch, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", symbol, contracts.ErrTransientFetch, err)
	}
}

func (c *Client) chartURL(symbol string, from, to time.Time) string {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")
	return fmt.Sprintf("%s/%s?%s", c.chartBaseURL, url.PathEscape(symbol), params.Encode())
}

func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) (*chartResult, error) {
	var payload chartResponse
	if err := c.httpClient.GetJSON(ctx, c.chartURL(symbol, from, to), &payload); err != nil {
		return nil, classify(symbol, err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %w: %s", symbol, contracts.ErrDataUnavailable, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%s: %w: empty chart", symbol, contracts.ErrDataUnavailable)
	}
	return &payload.Chart.Result[0], nil
}

// FetchDailyBars returns daily OHLCV bars for symbol in [from, to].
// Missing open/high/low/volume arrays are defaulted and logged; a missing close array
// is a schema mismatch.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
	res, err := c.fetchChart(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	bars, missing, err := res.bars()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	if len(missing) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"missing": missing,
		}).Warn("Provider payload missing columns, defaults applied")
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched daily bars")

	return bars, nil
}

// FetchIndexLevels returns daily closes of an index
func (c *Client) FetchIndexLevels(ctx context.Context, symbol string, from, to time.Time) ([]contracts.IndexLevel, error) {
	res, err := c.fetchChart(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	levels, err := res.levels()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%s: %w: no closes", symbol, contracts.ErrDataUnavailable)
	}
	return levels, nil
}

// FetchNews returns recent headlines for symbol
func (c *Client) FetchNews(ctx context.Context, symbol string) ([]contracts.NewsItem, error) {
	params := url.Values{}
	params.Set("q", contracts.ProviderSymbol(symbol))
	params.Set("quotesCount", "0")
	params.Set("newsCount", fmt.Sprintf("%d", c.newsCount))

	var payload searchResponse
	if err := c.httpClient.GetJSON(ctx, c.searchBaseURL+"?"+params.Encode(), &payload); err != nil {
		return nil, classify(symbol, err)
	}

	items := payload.items(contracts.NormalizeSymbol(symbol))
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w: no headlines", symbol, contracts.ErrDataUnavailable)
	}
	return items, nil
}
