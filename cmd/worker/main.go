package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wargapos/wargapos/internal/config"
	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
	kafkax "github.com/wargapos/wargapos/internal/kafka"
	"github.com/wargapos/wargapos/internal/logx"
	"github.com/wargapos/wargapos/internal/postgres"
	"github.com/wargapos/wargapos/internal/redisx"
	"github.com/wargapos/wargapos/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.ServiceName + "-worker")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStoreEvents, 256, log)
	prod.Start(ctx)

	bridge := &worker.Bridge{Redis: rdb, Log: log}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.EventsGroup, events.TopicStoreEvents, cfg.EventsWorkers, log)

	sweeper := &worker.Sweeper{
		DB:        db,
		Publisher: &fanout.KafkaPublisher{Producer: prod},
		Producer:  cfg.ServiceName + "-worker",
		Interval:  cfg.SweepInterval,
		Log:       log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("fanout bridge started",
			zap.String("group", cfg.EventsGroup),
			zap.String("topic", events.TopicStoreEvents),
			zap.Int("workers", cfg.EventsWorkers))
		return cons.Start(gctx, bridge.Handle)
	})
	g.Go(func() error {
		log.Info("cart sweeper started", zap.Duration("interval", cfg.SweepInterval))
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
			log.Info("shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("worker exit", zap.Error(err))
	}
	prod.WaitClosed()
}
