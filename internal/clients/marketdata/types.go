package marketdata

// MarketItem is one row of the markets endpoint. Both the crypto and the
// stock feeds share this shape.
type MarketItem struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	Image                    string  `json:"image"`
}

// TrendingItem is one entry of the trending endpoint. Only the id is needed;
// full quotes are resolved through a second markets call.
type TrendingItem struct {
	Item struct {
		ID string `json:"id"`
	} `json:"item"`
}

type trendingResponse struct {
	Coins []TrendingItem `json:"coins"`
}

// NFTListItem is one row of the NFT collection list endpoint.
type NFTListItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// NFTDetail is the per-collection detail response. There is no batch
// endpoint, so the catalog issues one call per collection.
type NFTDetail struct {
	ID                            string  `json:"id"`
	Name                          string  `json:"name"`
	Symbol                        string  `json:"symbol"`
	FloorPriceUSD                 float64 `json:"floor_price_in_usd"`
	FloorPrice24hPercentageChange float64 `json:"floor_price_24h_percentage_change"`
	Volume24h                     float64 `json:"volume_24h"`
	Image                         string  `json:"image"`
}

// NewsArticle is one article from the news feed. Missing fields decode to
// zero values; the feed is best-effort.
type NewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

type newsResponse struct {
	Articles []NewsArticle `json:"articles"`
}
