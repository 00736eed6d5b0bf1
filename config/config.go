package config

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultMarketsURL  = "https://api.coingecko.com/api/v3/coins/markets"
	defaultTrendingURL = "https://api.coingecko.com/api/v3/search/trending"
	defaultNFTListURL  = "https://api.coingecko.com/api/v3/nfts/list"
	defaultNFTItemURL  = "https://api.coingecko.com/api/v3/nfts"
)

// Config holds the daemon settings.
type Config struct {
	// Setup is true when the user asked for the interactive wizard; the
	// caller runs it and reloads the generated file.
	Setup bool

	RedisAddr       string
	DemoMode        bool
	WebAddr         string
	RefreshInterval time.Duration
	JournalDir      string

	MarketsURL  string
	StocksURL   string
	TrendingURL string
	NFTListURL  string
	NFTItemURL  string
	NewsURL     string
}

// ConfigTmp is the yaml shadow of Config, also written by the setup wizard.
type ConfigTmp struct {
	RedisAddr       string        `yaml:"redis_addr"`
	DemoMode        bool          `yaml:"demo_mode"`
	WebAddr         string        `yaml:"web_addr"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	JournalDir      string        `yaml:"journal_dir"`
	MarketsURL      string        `yaml:"markets_url"`
	StocksURL       string        `yaml:"stocks_url"`
	TrendingURL     string        `yaml:"trending_url"`
	NFTListURL      string        `yaml:"nft_list_url"`
	NFTItemURL      string        `yaml:"nft_item_url"`
	NewsURL         string        `yaml:"news_url"`
}

// Get loads configuration from a yaml file when --config is provided,
// otherwise from CLI flags. A .env file, when present, populates the
// environment first.
func Get() (Config, error) {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to yaml config")
	setupFlag := flag.Bool("setup", false, "run the interactive configuration wizard")
	redisAddr := flag.String("redis", "localhost:6379", "redis address for the ledger store")
	demo := flag.Bool("demo", false, "run with an in-memory ledger instead of redis")
	webAddr := flag.String("web", ":8080", "address for the web/SSE server")
	refresh := flag.Duration("refreshinterval", time.Minute, "auto refresh interval")
	flag.Parse()

	if *setupFlag {
		return Config{Setup: true}, nil
	}

	if *configPath != "" {
		return Load(*configPath)
	}

	cfg := Config{
		RedisAddr:       *redisAddr,
		DemoMode:        *demo,
		WebAddr:         *webAddr,
		RefreshInterval: *refresh,
	}
	return withDefaults(cfg)
}

// Load reads a yaml config file.
func Load(path string) (Config, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	cfg := Config{
		RedisAddr:       tmp.RedisAddr,
		DemoMode:        tmp.DemoMode,
		WebAddr:         tmp.WebAddr,
		RefreshInterval: tmp.RefreshInterval,
		JournalDir:      tmp.JournalDir,
		MarketsURL:      tmp.MarketsURL,
		StocksURL:       tmp.StocksURL,
		TrendingURL:     tmp.TrendingURL,
		NFTListURL:      tmp.NFTListURL,
		NFTItemURL:      tmp.NFTItemURL,
		NewsURL:         tmp.NewsURL,
	}
	return withDefaults(cfg)
}

func withDefaults(cfg Config) (Config, error) {
	if cfg.RefreshInterval < 0 {
		return Config{}, errors.Errorf("invalid refresh interval %s", cfg.RefreshInterval)
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}
	if !cfg.DemoMode && cfg.RedisAddr == "" {
		return Config{}, errors.New("redis address is required unless demo mode is enabled")
	}
	if cfg.MarketsURL == "" {
		cfg.MarketsURL = defaultMarketsURL
	}
	if cfg.TrendingURL == "" {
		cfg.TrendingURL = defaultTrendingURL
	}
	if cfg.NFTListURL == "" {
		cfg.NFTListURL = defaultNFTListURL
	}
	if cfg.NFTItemURL == "" {
		cfg.NFTItemURL = defaultNFTItemURL
	}
	if cfg.StocksURL == "" {
		cfg.StocksURL = os.Getenv("FOLIOSYNC_STOCKS_URL")
	}
	if cfg.NewsURL == "" {
		cfg.NewsURL = os.Getenv("FOLIOSYNC_NEWS_URL")
	}
	return cfg, nil
}
