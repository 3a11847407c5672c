// Command bookd serves the order book over HTTP, optionally publishing
// events to Kafka and snapshotting to a local pebble store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openorder/book"
	"github.com/openorder/book/publish"
	"github.com/openorder/book/store"
)

type serverConfig struct {
	Addr             string        `env:"BOOKD_ADDR" envDefault:":8080"`
	Pairs            []string      `env:"BOOKD_PAIRS" envDefault:"UBI/ETH"`
	KafkaBrokers     []string      `env:"BOOKD_KAFKA_BROKERS"`
	KafkaTopic       string        `env:"BOOKD_KAFKA_TOPIC" envDefault:"book-events"`
	SnapshotDir      string        `env:"BOOKD_SNAPSHOT_DIR"`
	SnapshotInterval time.Duration `env:"BOOKD_SNAPSHOT_INTERVAL" envDefault:"1m"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	book.SetLogger(logger)

	_ = godotenv.Load()
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("parse config", zap.Error(err))
	}

	var publisher book.Publisher = book.NopPublisher{}
	var kafkaPub *publish.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPub
		defer kafkaPub.Close()
	}

	var snapStore *store.SnapshotStore
	if cfg.SnapshotDir != "" {
		snapStore, err = store.Open(cfg.SnapshotDir)
		if err != nil {
			logger.Fatal("open snapshot store", zap.Error(err))
		}
		defer snapStore.Close()
	}

	engine := book.NewEngine(func(pair string) []book.Option {
		return []book.Option{book.WithPublisher(publisher)}
	})
	for _, pair := range cfg.Pairs {
		if snapStore != nil {
			snap, err := snapStore.LoadLatest(pair)
			if err == nil {
				engine.Restore(book.RestoreBook(snap, book.WithPublisher(publisher)))
				logger.Info("restored book from snapshot",
					zap.String("pair", pair),
					zap.Uint64("order_seq", snap.OrderSeq))
				continue
			}
			if !errors.Is(err, store.ErrSnapshotNotFound) {
				logger.Fatal("load snapshot", zap.String("pair", pair), zap.Error(err))
			}
		}
		engine.Book(pair)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if snapStore != nil {
		go snapshotLoop(ctx, engine, snapStore, cfg.SnapshotInterval, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newServer(engine, logger).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	if snapStore != nil {
		saveAll(engine, snapStore, logger)
	}
	os.Exit(0)
}

func snapshotLoop(ctx context.Context, engine *book.Engine, st *store.SnapshotStore, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveAll(engine, st, logger)
		}
	}
}

func saveAll(engine *book.Engine, st *store.SnapshotStore, logger *zap.Logger) {
	engine.Range(func(b *book.Book) bool {
		id, err := st.Save(b.Snapshot())
		if err != nil {
			logger.Error("save snapshot", zap.String("pair", b.Pair()), zap.Error(err))
			return true
		}
		logger.Debug("saved snapshot", zap.String("pair", b.Pair()), zap.String("id", id))
		return true
	})
}
