package catalog

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/internal/clients/marketdata"
	"github.com/foliosync/foliosync/internal/domain"
)

const (
	// detail endpoints have no batch variant, cap the per-batch call count
	// and space the calls out to avoid rate-limit storms
	nftDetailCap   = 10
	nftDetailDelay = 200 * time.Millisecond
)

// marketAPI is the slice of the market data client the catalog consumes.
type marketAPI interface {
	CryptoMarkets(ctx context.Context) ([]marketdata.MarketItem, error)
	StockMarkets(ctx context.Context) ([]marketdata.MarketItem, error)
	MarketsByIDs(ctx context.Context, ids []string) ([]marketdata.MarketItem, error)
	Trending(ctx context.Context) ([]string, error)
	NFTList(ctx context.Context) ([]marketdata.NFTListItem, error)
	NFTCollection(ctx context.Context, id string) (marketdata.NFTDetail, error)
}

// Catalog normalizes raw API payloads into typed quote batches. Malformed
// items are logged and skipped; an empty payload is substituted with the
// bundled fallback dataset for the class, flagged as non-live.
type Catalog struct {
	api         marketAPI
	logger      *zap.Logger
	detailCap   int
	detailDelay time.Duration
}

// New creates a catalog over the given market API.
func New(logger *zap.Logger, api marketAPI) *Catalog {
	return &Catalog{
		api:         api,
		logger:      logger,
		detailCap:   nftDetailCap,
		detailDelay: nftDetailDelay,
	}
}

// Crypto fetches and normalizes the crypto markets page.
func (c *Catalog) Crypto(ctx context.Context) (domain.QuoteBatch, error) {
	items, err := c.api.CryptoMarkets(ctx)
	if err != nil {
		return domain.QuoteBatch{}, err
	}
	return c.batchFromItems(items, domain.ClassCrypto), nil
}

// Stocks fetches and normalizes the stock quote feed.
func (c *Catalog) Stocks(ctx context.Context) (domain.QuoteBatch, error) {
	items, err := c.api.StockMarkets(ctx)
	if err != nil {
		return domain.QuoteBatch{}, err
	}
	return c.batchFromItems(items, domain.ClassStock), nil
}

// Trending resolves the trending id set into full quotes via a second
// markets call.
func (c *Catalog) Trending(ctx context.Context) (domain.QuoteBatch, error) {
	ids, err := c.api.Trending(ctx)
	if err != nil {
		return domain.QuoteBatch{}, err
	}

	items, err := c.api.MarketsByIDs(ctx, ids)
	if err != nil {
		return domain.QuoteBatch{}, err
	}
	return c.batchFromItems(items, domain.ClassCrypto), nil
}

// NFTs fetches the collection index and resolves details one collection at a
// time. Collections whose detail call fails are omitted; they never block
// the rest of the batch.
func (c *Catalog) NFTs(ctx context.Context) (domain.QuoteBatch, error) {
	list, err := c.api.NFTList(ctx)
	if err != nil {
		return domain.QuoteBatch{}, err
	}
	if len(list) == 0 {
		return Fallback(domain.ClassNFT), nil
	}

	if len(list) > c.detailCap {
		list = list[:c.detailCap]
	}

	quotes := make([]domain.AssetQuote, 0, len(list))
	for i, item := range list {
		if i > 0 {
			select {
			case <-ctx.Done():
				return domain.QuoteBatch{}, ctx.Err()
			case <-time.After(c.detailDelay):
			}
		}

		detail, err := c.api.NFTCollection(ctx, item.ID)
		if err != nil {
			c.logger.Warn("skipping nft collection detail",
				zap.String("collection", item.ID), zap.Error(err))
			continue
		}

		quote, ok := c.quoteFromNFTDetail(detail)
		if !ok {
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return Fallback(domain.ClassNFT), nil
	}

	return domain.QuoteBatch{
		Class:     domain.ClassNFT,
		Quotes:    quotes,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Catalog) batchFromItems(items []marketdata.MarketItem, class domain.AssetClass) domain.QuoteBatch {
	if len(items) == 0 {
		return Fallback(class)
	}

	quotes := make([]domain.AssetQuote, 0, len(items))
	for _, item := range items {
		quote, ok := c.quoteFromItem(item, class)
		if !ok {
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return Fallback(class)
	}

	return domain.QuoteBatch{
		Class:     class,
		Quotes:    quotes,
		FetchedAt: time.Now().UTC(),
	}
}

// quoteFromItem validates a single raw row. A malformed row is reported and
// skipped, it never aborts the batch.
func (c *Catalog) quoteFromItem(item marketdata.MarketItem, class domain.AssetClass) (domain.AssetQuote, bool) {
	if item.ID == "" || item.Symbol == "" {
		c.logger.Warn("skipping market item without identifier", zap.String("name", item.Name))
		return domain.AssetQuote{}, false
	}
	if !validFinite(item.CurrentPrice) || item.CurrentPrice < 0 {
		c.logger.Warn("skipping market item with invalid price",
			zap.String("id", item.ID), zap.Float64("price", item.CurrentPrice))
		return domain.AssetQuote{}, false
	}
	if !validFinite(item.PriceChangePercentage24h) {
		item.PriceChangePercentage24h = 0
	}
	if !validFinite(item.MarketCap) || item.MarketCap < 0 {
		item.MarketCap = 0
	}
	if !validFinite(item.TotalVolume) || item.TotalVolume < 0 {
		item.TotalVolume = 0
	}

	return domain.AssetQuote{
		Identifier:      item.ID,
		DisplaySymbol:   item.Symbol,
		DisplayName:     item.Name,
		Class:           class,
		PriceUSD:        decimal.NewFromFloat(item.CurrentPrice),
		ChangePercent24: decimal.NewFromFloat(item.PriceChangePercentage24h),
		MarketCapUSD:    decimal.NewFromFloat(item.MarketCap),
		Volume24hUSD:    decimal.NewFromFloat(item.TotalVolume),
		ImageRef:        item.Image,
	}, true
}

func (c *Catalog) quoteFromNFTDetail(detail marketdata.NFTDetail) (domain.AssetQuote, bool) {
	if detail.ID == "" {
		c.logger.Warn("skipping nft detail without id", zap.String("name", detail.Name))
		return domain.AssetQuote{}, false
	}
	if !validFinite(detail.FloorPriceUSD) || detail.FloorPriceUSD < 0 {
		c.logger.Warn("skipping nft detail with invalid floor price",
			zap.String("id", detail.ID), zap.Float64("floor", detail.FloorPriceUSD))
		return domain.AssetQuote{}, false
	}
	if !validFinite(detail.FloorPrice24hPercentageChange) {
		detail.FloorPrice24hPercentageChange = 0
	}
	if !validFinite(detail.Volume24h) || detail.Volume24h < 0 {
		detail.Volume24h = 0
	}

	symbol := detail.Symbol
	if symbol == "" {
		symbol = detail.ID
	}

	return domain.AssetQuote{
		Identifier:      detail.ID,
		DisplaySymbol:   symbol,
		DisplayName:     detail.Name,
		Class:           domain.ClassNFT,
		PriceUSD:        decimal.NewFromFloat(detail.FloorPriceUSD),
		ChangePercent24: decimal.NewFromFloat(detail.FloorPrice24hPercentageChange),
		Volume24hUSD:    decimal.NewFromFloat(detail.Volume24h),
		ImageRef:        detail.Image,
	}, true
}

func validFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
