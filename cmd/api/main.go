package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/config"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/db"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/logging"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/server"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectRabbitMQ func(config.Config) (*amqp.Connection, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, Resources, <-chan os.Signal, ListenFunc) error
}

// Resources are the connections the server runs on. Any of them may be nil.
type Resources struct {
	Cfg      config.Config
	Log      *logrus.Logger
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	RabbitMQ *amqp.Connection
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectRabbitMQ: db.ConnectRabbitMQ,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := logging.New(cfg.LogLevel)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.WithError(err).Error("postgres connection failed")
	}

	rdb := deps.connectRedis(cfg)

	mq, err := deps.connectRabbitMQ(cfg)
	if err != nil {
		log.WithError(err).Warn("rabbitmq connection failed, events stay local")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	res := Resources{Cfg: cfg, Log: log, Postgres: pg, Redis: rdb, RabbitMQ: mq}
	if err := deps.run(context.Background(), res, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, res Resources, signals <-chan os.Signal, listen ListenFunc) error {
	log := res.Log
	if log == nil {
		log = logging.New(res.Cfg.LogLevel)
	}

	var publisher events.Publisher
	if res.RabbitMQ != nil {
		mq, err := events.NewRabbitMQ(res.RabbitMQ)
		if err != nil {
			return err
		}
		publisher = mq
	}

	srv := server.NewServer(res.Cfg, res.Postgres, res.Redis, publisher, log)
	if res.Postgres != nil {
		if err := srv.Prepare(ctx); err != nil {
			return err
		}
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, res.Cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Stream.Close()
	if res.Postgres != nil {
		res.Postgres.Close()
	}
	if res.Redis != nil {
		_ = res.Redis.Close()
	}
	if res.RabbitMQ != nil {
		_ = res.RabbitMQ.Close()
	}
	return nil
}
