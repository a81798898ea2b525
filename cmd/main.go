package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/natsbus"
	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/postgres"
	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/alert"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/catalog"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/kitchen"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/orderset"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/relay"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/tracking"
	"github.com/YelzhanWeb/kitchen-sync/internal/config"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/kitchen-sync/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/kitchen-sync/internal/adapter/http"
	redisAdapter "github.com/YelzhanWeb/kitchen-sync/internal/adapter/redis"
)

func main() {
	mode := flag.String("mode", "", "Service mode: viewer, feed-relay, alert-subscriber")
	role := flag.String("role", "kitchen", "Viewer role: kitchen, waiter, tracker")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	prefetch := flag.Int("prefetch", 10, "RabbitMQ prefetch count")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}

	lgr := logger.New(*mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "viewer":
		r, perr := alert.ParseRole(*role)
		if perr != nil {
			log.Fatal(perr)
		}
		err = runViewer(ctx, cfg, lgr, r, *prefetch)

	case "feed-relay":
		err = runFeedRelay(ctx, cfg, lgr)

	case "alert-subscriber":
		err = runAlertSubscriber(ctx, cfg, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Error("service_failed", "Service stopped with error", "shutdown", nil, err)
		os.Exit(1)
	}
	lgr.Info("service_stopped", "Shutdown complete", "shutdown", nil)
}

// brokers opens RabbitMQ and NATS connections on first use and closes them
// on shutdown.
type brokers struct {
	cfg    *config.Config
	logger logger.Logger
	mq     rabbitmq.Connection
	bus    *natsbus.Bus
}

func (b *brokers) rabbit() (rabbitmq.Connection, error) {
	if b.mq != nil {
		return b.mq, nil
	}
	conn, err := rabbitmq.Connect(b.cfg.RabbitMQ)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	b.logger.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": b.cfg.RabbitMQ.Host,
	})
	b.mq = conn
	return conn, nil
}

func (b *brokers) nats() (*natsbus.Bus, error) {
	if b.bus != nil {
		return b.bus, nil
	}
	bus, err := natsbus.Connect(b.cfg.NATS.URL, b.cfg.NATS.ChangeSubject, b.cfg.NATS.AlertSubject, b.logger)
	if err != nil {
		return nil, err
	}
	b.logger.Info("nats_connected", "Connected to NATS", "startup", map[string]interface{}{
		"url": b.cfg.NATS.URL,
	})
	b.bus = bus
	return bus, nil
}

func (b *brokers) Close() {
	if b.mq != nil {
		b.mq.Close()
	}
	if b.bus != nil {
		b.bus.Close()
	}
}

func (b *brokers) changePublisher(target string) (interfaces.ChangePublisher, error) {
	switch target {
	case "rabbitmq":
		conn, err := b.rabbit()
		if err != nil {
			return nil, err
		}
		return rabbitmq.NewPublisher(conn), nil
	case "nats":
		return b.nats()
	default:
		return nil, fmt.Errorf("unknown relay target %q", target)
	}
}

func (b *brokers) alertPublisher(sink string) (interfaces.AlertPublisher, error) {
	switch sink {
	case "rabbitmq":
		conn, err := b.rabbit()
		if err != nil {
			return nil, err
		}
		return rabbitmq.NewPublisher(conn), nil
	case "nats":
		return b.nats()
	default:
		return alert.NewLogPublisher(b.logger), nil
	}
}

func connectDB(ctx context.Context, cfg *config.Config, lgr logger.Logger) (postgres.DB, error) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})
	return db, nil
}

func runViewer(ctx context.Context, cfg *config.Config, lgr logger.Logger, role alert.Role, prefetch int) error {
	db, err := connectDB(ctx, cfg, lgr)
	if err != nil {
		return err
	}
	defer db.Close()

	b := &brokers{cfg: cfg, logger: lgr}
	defer b.Close()

	var feed interfaces.ChangeFeed
	switch cfg.Feed.Source {
	case "rabbitmq":
		conn, err := b.rabbit()
		if err != nil {
			return err
		}
		feed = rabbitmq.NewChangeFeed(conn, lgr, prefetch)
	case "nats":
		feed = natsbus.NewChangeFeed(cfg.NATS.URL, cfg.NATS.ChangeSubject, lgr)
	default:
		feed = postgres.NewChangeFeed(db, cfg.Database.Channel, lgr)
	}

	publisher, err := b.alertPublisher(cfg.Alerts.Sink)
	if err != nil {
		return err
	}

	var prepCache interfaces.PrepTimeCache
	if client := redisAdapter.NewClient(ctx, cfg.Redis); client != nil {
		defer client.Close()
		prepCache = redisAdapter.NewPrepTimeCache(client, cfg.Redis.Key, cfg.Redis.TTL)
		lgr.Info("redis_connected", "Sharing prep times through Redis", "startup", map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})
	} else if cfg.Redis.Enabled {
		lgr.Warn("redis_unavailable", "Redis unreachable, reading prep times from the database", "startup", nil)
	}

	ledger := postgres.NewLedgerRepository(db)
	prepTimes := catalog.New(postgres.NewPrepTimeRepository(db), prepCache, lgr, cfg.Catalog.DefaultPrepMinutes)
	dispatcher := alert.NewDispatcher(publisher, lgr, cfg.Alerts.QueueSize, role.Kinds()...)

	feedSync := orderset.NewSync(orderset.NewSet(), ledger, feed, dispatcher, lgr, orderset.SyncConfig{
		PollInterval:     cfg.Feed.PollInterval,
		BackoffMin:       cfg.Feed.BackoffMin,
		BackoffMax:       cfg.Feed.BackoffMax,
		ReconcileTimeout: cfg.Viewer.ReconcileTimeout,
	})
	orders := orderset.NewCache(feedSync, ledger, lgr, cfg.Viewer.CommandTimeout)

	scheduler := kitchen.NewService(feedSync, prepTimes, dispatcher, lgr, kitchen.Config{
		TickInterval:  cfg.Viewer.TickInterval,
		LateThreshold: cfg.Viewer.LateThreshold,
		FireGrace:     cfg.Viewer.FireGrace,
		RetiredTTL:    cfg.Viewer.RetiredTTL,
	})
	tracker := tracking.NewService(scheduler, lgr)

	var commands *httpAdapter.CommandHandler
	if role != alert.RoleTracker {
		commands = httpAdapter.NewCommandHandler(orders, lgr)
	}
	router := httpAdapter.NewRouter(httpAdapter.NewBoardHandler(scheduler, tracker, lgr), commands, lgr)

	// WriteTimeout stays zero: the board stream is long-lived.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return prepTimes.Run(gctx, cfg.Catalog.RefreshInterval) })
	g.Go(func() error { return feedSync.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		lgr.Info("service_started", fmt.Sprintf("Viewer started on port %d", cfg.HTTP.Port), "startup", map[string]interface{}{
			"role":        string(role),
			"feed_source": cfg.Feed.Source,
			"alert_sink":  cfg.Alerts.Sink,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down viewer", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
		return nil
	})

	return g.Wait()
}

func runFeedRelay(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	db, err := connectDB(ctx, cfg, lgr)
	if err != nil {
		return err
	}
	defer db.Close()

	b := &brokers{cfg: cfg, logger: lgr}
	defer b.Close()

	publishers := make(map[string]interfaces.ChangePublisher, len(cfg.Feed.RelayTargets))
	for _, target := range cfg.Feed.RelayTargets {
		pub, err := b.changePublisher(target)
		if err != nil {
			return err
		}
		publishers[target] = pub
	}
	if len(publishers) == 0 {
		return errors.New("feed.relay_targets is empty")
	}

	svc := relay.NewService(postgres.NewChangeFeed(db, cfg.Database.Channel, lgr), publishers, lgr, cfg.Feed.BackoffMin, cfg.Feed.BackoffMax)
	handler := amqpAdapter.NewRelayHandler(svc, lgr)

	lgr.Info("service_started", "Feed relay started", "startup", map[string]interface{}{
		"channel": cfg.Database.Channel,
		"targets": cfg.Feed.RelayTargets,
	})

	return svc.Run(ctx, handler.HandleChange)
}

func runAlertSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	b := &brokers{cfg: cfg, logger: lgr}
	defer b.Close()

	var consumer interfaces.AlertConsumer
	switch cfg.Alerts.Sink {
	case "rabbitmq":
		conn, err := b.rabbit()
		if err != nil {
			return err
		}
		consumer = rabbitmq.NewAlertConsumer(conn, lgr)
	case "nats":
		bus, err := b.nats()
		if err != nil {
			return err
		}
		consumer = bus
	default:
		return fmt.Errorf("alert-subscriber needs alerts.sink rabbitmq or nats, got %q", cfg.Alerts.Sink)
	}

	handler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Alert subscriber started", "startup", map[string]interface{}{
		"sink": cfg.Alerts.Sink,
	})

	return consumer.ConsumeAlerts(ctx, handler.HandleAlert)
}
