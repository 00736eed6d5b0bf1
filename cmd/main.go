// Command foliosyncd runs the portfolio synchronization daemon. It fetches
// crypto, stock and NFT market data, reconciles it against the per-user
// holdings ledger in redis and serves the reconciled state over HTTP/SSE.
//
// Usage:
//
//	foliosyncd --config config.yaml
//	foliosyncd --setup          (interactive configuration wizard)
//	foliosyncd --demo           (in-memory ledger, no redis required)
//
// Required environment variables:
//
//	FOLIOSYNC_USER_ID - opaque user id of the session to sync
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/config"
	"github.com/foliosync/foliosync/internal/auth"
	"github.com/foliosync/foliosync/internal/clients/marketdata"
	"github.com/foliosync/foliosync/internal/events"
	"github.com/foliosync/foliosync/internal/services/catalog"
	"github.com/foliosync/foliosync/internal/services/exchange"
	"github.com/foliosync/foliosync/internal/services/failtrack"
	"github.com/foliosync/foliosync/internal/services/portfolio"
	"github.com/foliosync/foliosync/internal/setup"
	"github.com/foliosync/foliosync/internal/storage/exchangejournal"
	ledgerstore "github.com/foliosync/foliosync/internal/storage/ledger"
	"github.com/foliosync/foliosync/internal/web"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.Load("config.gen.yaml")
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	var store ledgerstore.Store
	if cfg.DemoMode {
		store = ledgerstore.NewMemoryStore()
		logger.Info("running with in-memory ledger (demo mode)")
	} else {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		store = ledgerstore.NewRedisStore(client)
	}

	mdClient := marketdata.New(logger, marketdata.Endpoints{
		Markets:  cfg.MarketsURL,
		Stocks:   cfg.StocksURL,
		Trending: cfg.TrendingURL,
		NFTList:  cfg.NFTListURL,
		NFTItem:  cfg.NFTItemURL,
		News:     cfg.NewsURL,
	})

	journal, err := exchangejournal.New(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open exchange journal", zap.Error(err))
	}
	defer journal.Close()

	engine, err := exchange.New(logger, store, journal)
	if err != nil {
		logger.Fatal("failed to init exchange engine", zap.Error(err))
	}
	if engine.Halted() {
		logger.Warn("exchange engine started halted, manual ledger correction required")
	}

	tracker := failtrack.New(logger, failtrack.DefaultConfig())
	broadcaster := events.NewPortfolioBroadcaster(256)
	assets := catalog.New(logger, mdClient)
	identity := auth.EnvProvider{}
	svc := portfolio.New(logger, assets, store, identity, tracker, broadcaster)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &web.Server{
		Addr:      cfg.WebAddr,
		Snapshots: broadcaster,
		Portfolio: svc,
		News:      mdClient,
		Trending:  assets,
		Exchange:  engine,
		Refresher: svc,
		Identity:  identity,
	}
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("web server stopped", zap.Error(err))
		}
	}()

	if err := svc.Run(ctx, cfg.RefreshInterval); err != nil && ctx.Err() == nil {
		logger.Fatal("portfolio sync stopped", zap.Error(err))
	}
}
