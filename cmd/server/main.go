package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/algoarena/live-session/config"
	"github.com/algoarena/live-session/internal/delivery/kafka/consumer"
	"github.com/algoarena/live-session/internal/delivery/kafka/producer"
	"github.com/algoarena/live-session/internal/delivery/ws"
	"github.com/algoarena/live-session/internal/livestore"
	pgrepo "github.com/algoarena/live-session/internal/repository/postgres"
	redisrepo "github.com/algoarena/live-session/internal/repository/redis"
	"github.com/algoarena/live-session/internal/service"
	"github.com/algoarena/live-session/internal/snapshot"
	"github.com/algoarena/live-session/pkg/jwt"
	pkgKafka "github.com/algoarena/live-session/pkg/kafka"
	pkgLog "github.com/algoarena/live-session/pkg/logger"
	pkgRedis "github.com/algoarena/live-session/pkg/redis"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := pkgRedis.NewClient(cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redisCli.Close()

	db, err := pgrepo.Open(cfg.Postgres, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}

	// Live state
	roomRepo := redisrepo.NewRedisRoomLiveRepository(redisCli, l)
	gameRepo := redisrepo.NewRedisGameLiveRepository(redisCli, l)
	rooms := livestore.NewRoomStore(roomRepo, l)
	games := livestore.NewGameStore(gameRepo, l)

	// Snapshot pipeline
	reg := snapshot.Registry{
		Room:    pgrepo.NewRoomContributor(db, l),
		Game:    pgrepo.NewGameContributor(db, l),
		BanPick: pgrepo.NewBanPickContributor(db, l),
	}
	writer := snapshot.NewWriter(reg, rooms, games, l, cfg.Snapshot)
	if err := writer.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start snapshot writer: %v", err)
	}
	defer writer.Stop()

	// Kafka
	prod := producer.NewNoopProducer()
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		}, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kSyncProd, l)
	}
	defer prod.Close()

	// Services
	hub := ws.NewHub(l)
	sched := service.NewStageScheduler(l)
	catalog := service.NewCatalog()

	roomSvc := service.NewRoomService(rooms, games, hub, writer, sched, prod, cfg.Stage, l)
	gameSvc := service.NewGameService(games, rooms, hub, writer, sched, catalog, prod, cfg.Stage, l)
	sched.SetHandler(gameSvc.HandleStageDeadline)
	chatSvc := service.NewChatService(rooms, hub, l)

	// Judge verdict intake
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		kConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ConsumerGroupID,
		}, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons = consumer.NewConsumer(kConsGr, gameSvc, l)
		if err := cons.Start(ctx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
		defer cons.Close()
	}

	// Websocket endpoint
	router := ws.NewRouter(roomSvc, gameSvc, chatSvc, l)
	handler := ws.NewHandler(hub, router, roomSvc, jwt.NewVerifier(cfg.JWT.Secret), cfg.Server.TimeSyncEvery, l)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", handler.ServeWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:     mux,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "server is listening on port %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatalf(ctx, "Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf(ctx, "HTTP shutdown: %v", err)
	}

	sched.Stop()
	cancel()

	l.Info(ctx, "Server exited")
}
