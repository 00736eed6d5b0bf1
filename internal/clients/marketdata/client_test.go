package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	endpoints := Endpoints{
		Markets:  srv.URL + "/markets",
		Stocks:   srv.URL + "/stocks",
		Trending: srv.URL + "/trending",
		NFTList:  srv.URL + "/nft",
		NFTItem:  srv.URL + "/nft",
		News:     srv.URL + "/news",
	}

	client := New(zap.NewNop(), endpoints,
		WithMinInterval(time.Millisecond),
		WithBackoff(time.Millisecond, 2),
	)
	return client, srv
}

func TestCryptoMarkets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":50000,"price_change_percentage_24h":-1.2,"market_cap":900000000,"total_volume":12345678,"image":"https://img/btc.png"}]`))
	}))

	items, err := client.CryptoMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bitcoin", items[0].ID)
	assert.Equal(t, 50000.0, items[0].CurrentPrice)
	assert.Equal(t, -1.2, items[0].PriceChangePercentage24h)
}

func TestGetClassifiesRateLimit(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.CryptoMarkets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	// initial attempt plus two backoff retries
	assert.Equal(t, 3, calls)
}

func TestGetRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))

	items, err := client.CryptoMarkets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 2, calls)
}

func TestGetDoesNotRetryServerErrors(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.CryptoMarkets(context.Background())
	require.Error(t, err)

	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestGetClassifiesNetworkError(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.CryptoMarkets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestTrendingExtractsIDs(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"coins":[{"item":{"id":"solana"}},{"item":{"id":""}},{"item":{"id":"dogecoin"}}]}`))
	}))

	ids, err := client.Trending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"solana", "dogecoin"}, ids)
}

func TestNFTCollection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nft/cryptopunks", r.URL.Path)
		w.Write([]byte(`{"name":"CryptoPunks","floor_price_in_usd":68000.5,"floor_price_24h_percentage_change":2.4,"volume_24h":1000000,"image":"https://img/punks.png"}`))
	}))

	detail, err := client.NFTCollection(context.Background(), "cryptopunks")
	require.NoError(t, err)
	assert.Equal(t, "cryptopunks", detail.ID)
	assert.Equal(t, "CryptoPunks", detail.Name)
	assert.Equal(t, 68000.5, detail.FloorPriceUSD)
}

func TestNewsToleratesBareArray(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"Markets rally"},{"url":"https://example.com/a"}]`))
	}))

	articles, err := client.News(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Markets rally", articles[0].Title)
	assert.Empty(t, articles[0].URL)
}

func TestMarketsByIDsEmptySetSkipsCall(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	items, err := client.MarketsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Zero(t, calls)
}

func TestUnconfiguredFeedsSkipCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	client := New(zap.NewNop(), Endpoints{Markets: srv.URL + "/markets"},
		WithMinInterval(time.Millisecond))

	items, err := client.StockMarkets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	articles, err := client.News(context.Background())
	require.NoError(t, err)
	assert.Empty(t, articles)

	assert.Zero(t, calls)
}
