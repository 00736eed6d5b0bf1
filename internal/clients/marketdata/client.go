package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/pkg/retrier"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMinInterval = 1500 * time.Millisecond
	defaultMaxRetries  = 3
	defaultBackoffBase = 2 * time.Second
)

// Endpoints configures the upstream URLs the client talks to.
type Endpoints struct {
	Markets  string
	Stocks   string
	Trending string
	NFTList  string
	NFTItem  string // per-collection, collection id appended as a path segment
	News     string
}

// Client issues throttled HTTP GET requests against the market data APIs.
// Rate-limit responses are retried with exponential backoff; network and
// timeout failures are classified and surfaced without retry, that policy
// lives with the caller's failure tracking.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	throttle  *rate.Limiter
	retrier   *retrier.Retrier
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used in tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMinInterval overrides the minimum inter-request interval.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.throttle = rate.NewLimiter(rate.Every(d), 1) }
}

// WithBackoff overrides the rate-limit retry schedule.
func WithBackoff(base time.Duration, maxRetries int) Option {
	return func(c *Client) {
		c.retrier = retrier.New(
			retrier.WithInitialInterval(base),
			retrier.WithMaxRetries(maxRetries),
			retrier.WithRetryIf(func(err error) bool {
				return errors.Is(err, domain.ErrRateLimited)
			}),
		)
	}
}

// New creates a market data client.
func New(logger *zap.Logger, endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: defaultTimeout},
		throttle:  rate.NewLimiter(rate.Every(defaultMinInterval), 1),
		logger:    logger,
	}
	WithBackoff(defaultBackoffBase, defaultMaxRetries)(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a throttled GET and returns the response body. Errors are
// classified into the domain taxonomy so callers can branch on errors.Is.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "throttle wait")
		}

		reqURL := endpoint
		if len(params) > 0 {
			reqURL = endpoint + "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "build request for %s", endpoint)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, classifyTransportError(err, endpoint)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited by upstream", zap.String("endpoint", endpoint))
			return nil, errors.Wrapf(domain.ErrRateLimited, "GET %s", endpoint)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &domain.APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrNetwork, "read body from %s: %v", endpoint, err)
		}

		return body, nil
	})
}

func classifyTransportError(err error, endpoint string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return errors.Wrapf(domain.ErrTimeout, "GET %s", endpoint)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(domain.ErrTimeout, "GET %s", endpoint)
	}
	return errors.Wrapf(domain.ErrNetwork, "GET %s: %v", endpoint, err)
}

// CryptoMarkets fetches the crypto markets page ordered by market cap.
func (c *Client) CryptoMarkets(ctx context.Context) ([]MarketItem, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "100")

	body, err := c.get(ctx, c.endpoints.Markets, params)
	if err != nil {
		return nil, err
	}

	var items []MarketItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode markets payload: %v", err)
	}
	return items, nil
}

// MarketsByIDs fetches full quotes for an explicit id set, used to resolve
// trending ids into quotes.
func (c *Client) MarketsByIDs(ctx context.Context, ids []string) ([]MarketItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(ids, ","))

	body, err := c.get(ctx, c.endpoints.Markets, params)
	if err != nil {
		return nil, err
	}

	var items []MarketItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode markets payload: %v", err)
	}
	return items, nil
}

// StockMarkets fetches the stock quote feed. An unconfigured endpoint
// yields no items so the catalog serves its bundled fallback instead of the
// request failing every cycle.
func (c *Client) StockMarkets(ctx context.Context) ([]MarketItem, error) {
	if c.endpoints.Stocks == "" {
		return nil, nil
	}

	body, err := c.get(ctx, c.endpoints.Stocks, nil)
	if err != nil {
		return nil, err
	}

	var items []MarketItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode stocks payload: %v", err)
	}
	return items, nil
}

// Trending returns the identifiers of currently trending coins.
func (c *Client) Trending(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, c.endpoints.Trending, nil)
	if err != nil {
		return nil, err
	}

	var resp trendingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode trending payload: %v", err)
	}

	ids := make([]string, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		if coin.Item.ID == "" {
			continue
		}
		ids = append(ids, coin.Item.ID)
	}
	return ids, nil
}

// NFTList fetches the NFT collection index.
func (c *Client) NFTList(ctx context.Context) ([]NFTListItem, error) {
	body, err := c.get(ctx, c.endpoints.NFTList, nil)
	if err != nil {
		return nil, err
	}

	var items []NFTListItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode nft list payload: %v", err)
	}
	return items, nil
}

// NFTCollection fetches detail for a single collection.
func (c *Client) NFTCollection(ctx context.Context, id string) (NFTDetail, error) {
	if id == "" {
		return NFTDetail{}, errors.New("collection id is required")
	}

	body, err := c.get(ctx, c.endpoints.NFTItem+"/"+url.PathEscape(id), nil)
	if err != nil {
		return NFTDetail{}, err
	}

	var detail NFTDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return NFTDetail{}, errors.Wrapf(domain.ErrMalformedData, "decode nft detail for %s: %v", id, err)
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return detail, nil
}

// News fetches the latest articles. Missing fields decode to zero values;
// an unconfigured endpoint yields an empty feed.
func (c *Client) News(ctx context.Context) ([]NewsArticle, error) {
	if c.endpoints.News == "" {
		return nil, nil
	}

	body, err := c.get(ctx, c.endpoints.News, nil)
	if err != nil {
		return nil, err
	}

	// some feeds return a bare array, others wrap it in an object
	var articles []NewsArticle
	if err := json.Unmarshal(body, &articles); err == nil {
		return articles, nil
	}

	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedData, "decode news payload: %v", err)
	}
	return resp.Articles, nil
}
