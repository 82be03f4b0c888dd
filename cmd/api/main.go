package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/catalog"
	"github.com/wargapos/wargapos/internal/config"
	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
	"github.com/wargapos/wargapos/internal/httpx"
	kafkax "github.com/wargapos/wargapos/internal/kafka"
	"github.com/wargapos/wargapos/internal/ledger"
	"github.com/wargapos/wargapos/internal/logx"
	"github.com/wargapos/wargapos/internal/orders"
	"github.com/wargapos/wargapos/internal/postgres"
	"github.com/wargapos/wargapos/internal/redisx"

	cartsvc "github.com/wargapos/wargapos/internal/cart"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.ServiceName)
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

	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStoreEvents, 1024, log)
	prod.Start(ctx)
	pub := &fanout.KafkaPublisher{Producer: prod}

	hub := fanout.NewHub(log)
	go func() {
		if err := hub.Run(ctx, rdb); err != nil {
			log.Error("hub", zap.Error(err))
		}
	}()

	stockLedger := &ledger.Ledger{DB: db, Publisher: pub, Producer: cfg.ServiceName, Log: log}
	catalogRepo := &catalog.Repo{DB: db}
	carts := &cartsvc.Service{DB: db, TTL: cfg.CartTTL, Log: log}
	orderSvc := &orders.Service{DB: db, Redis: rdb, Ledger: stockLedger, Publisher: pub, Producer: cfg.ServiceName, Log: log}

	srvh := &httpx.Server{
		Products: &httpx.ProductsHandler{Repo: catalogRepo, Ledger: stockLedger, Publisher: pub, Producer: cfg.ServiceName},
		Cart:     &httpx.CartHandler{Svc: carts},
		Orders:   &httpx.OrdersHandler{Svc: orderSvc},
		Audit:    &httpx.AuditHandler{Reader: stockLedger},
		Events:   &httpx.EventsHandler{Hub: hub, Redis: rdb, Publisher: pub, Producer: cfg.ServiceName, Log: log},
		Log:      log,
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: srvh.Router()}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()          // stop hub and producer loop
	prod.WaitClosed() // drain queued events
}
