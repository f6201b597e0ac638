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
	"strings"
	"syscall"

	"github.com/YelzhanWeb/canteen/internal/adapter/gateway"
	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/adapter/memory"
	"github.com/YelzhanWeb/canteen/internal/adapter/metrics"
	"github.com/YelzhanWeb/canteen/internal/adapter/postgres"
	"github.com/YelzhanWeb/canteen/internal/adapter/postgres/migrations"
	"github.com/YelzhanWeb/canteen/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/canteen/internal/app/audit"
	"github.com/YelzhanWeb/canteen/internal/app/broadcast"
	"github.com/YelzhanWeb/canteen/internal/app/inventory"
	"github.com/YelzhanWeb/canteen/internal/app/order"
	"github.com/YelzhanWeb/canteen/internal/app/payment"
	"github.com/YelzhanWeb/canteen/internal/app/queue"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/config"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"golang.org/x/sync/errgroup"

	amqpAdapter "github.com/YelzhanWeb/canteen/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/canteen/internal/adapter/http"
	kafkaAdapter "github.com/YelzhanWeb/canteen/internal/adapter/kafka"
)

func main() {
	mode := flag.String("mode", "", "Service mode: api, reaper, event-subscriber")
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	storage := flag.String("storage", "postgres", "Storage backend: postgres, memory")
	events := flag.String("events", "rabbitmq", "Event transport: rabbitmq, log")
	channels := flag.String("channels", "", "Comma-separated channels for event-subscriber (default: all)")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	lgr := logger.New(*mode, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, *storage, *events, lgr)
	case "reaper":
		if *storage != "postgres" {
			log.Fatal("reaper mode requires --storage=postgres")
		}
		err = runReaper(ctx, cfg, *events, lgr)
	case "event-subscriber":
		err = runEventSubscriber(ctx, cfg, splitChannels(*channels), lgr)
	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}

	if err != nil {
		lgr.Error("service_failed", "Service stopped with error", "shutdown", map[string]interface{}{"mode": *mode}, err)
		os.Exit(1)
	}
	lgr.Info("service_stopped", "Service stopped", "shutdown", map[string]interface{}{"mode": *mode})
}

// app holds the wired services plus everything that must be closed on exit.
type app struct {
	orders   *order.Service
	payments *payment.Service
	queue    *queue.Service
	storage  httpAdapter.Pinger
	metrics  *metrics.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type repositories struct {
	orders   interfaces.OrderRepository
	menu     interfaces.MenuRepository
	payments interfaces.PaymentRepository
	audit    interfaces.AuditSink
	tx       interfaces.TxManager
}

func buildApp(ctx context.Context, cfg *config.Config, storage, events string, clk clock.Clock, lgr logger.Logger) (*app, error) {
	a := &app{metrics: metrics.NewRegistry()}
	var repos repositories

	switch storage {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		db := postgres.NewDB(pool)
		a.closers = append(a.closers, db.Close)
		a.storage = db

		if cfg.Database.Migrate {
			if err := migrations.Apply(ctx, pool); err != nil {
				a.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		repos = repositories{
			orders:   postgres.NewOrderRepository(db),
			menu:     postgres.NewMenuRepository(db),
			payments: postgres.NewPaymentRepository(db),
			audit:    postgres.NewAuditRepository(db),
			tx:       postgres.NewTxManager(db),
		}
		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})

	case "memory":
		store := memory.NewStoreWithClock(clk)
		store.SeedMenu(clk.Now())
		repos = repositories{
			orders:   store.Orders(),
			menu:     store.Menu(),
			payments: store.Payments(),
			audit:    store.Audit(),
			tx:       store.TxManager(),
		}
		lgr.Info("memory_storage", "Using in-memory storage with the demo menu", "startup", nil)

	default:
		return nil, fmt.Errorf("unknown storage %q", storage)
	}

	sinks := audit.MultiSink{repos.audit}
	if cfg.Kafka.Enabled {
		w := kafkaAdapter.NewAuditWriter(cfg.Kafka)
		a.closers = append(a.closers, func() {
			if err := w.Close(); err != nil {
				lgr.Error("kafka_close_failed", "Failed to close audit writer", "shutdown", nil, err)
			}
		})
		sinks = append(sinks, w)
		lgr.Info("kafka_audit_enabled", "Mirroring audit records to Kafka", "startup", map[string]interface{}{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.AuditTopic,
		})
	}

	var publisher interfaces.EventPublisher
	switch events {
	case "rabbitmq":
		conn, err := rabbitmq.Connect(cfg.RabbitMQ)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		publisher = rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange, clk)
		lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
			"host":     cfg.RabbitMQ.Host,
			"exchange": cfg.RabbitMQ.Exchange,
		})
	case "log":
		publisher = broadcast.NewLogPublisher(lgr)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown event transport %q", events)
	}

	recorder := audit.NewRecorder(sinks, clk, lgr)
	broadcaster := broadcast.New(publisher, a.metrics, lgr)

	a.orders = order.NewService(order.Deps{
		Orders:      repos.orders,
		Menu:        repos.menu,
		Ledger:      inventory.NewLedger(repos.menu, repos.tx),
		Tx:          repos.tx,
		Broadcaster: broadcaster,
		Audit:       recorder,
		Metrics:     a.metrics,
		Clock:       clk,
		Logger:      lgr,
	})

	a.payments = payment.NewService(payment.Deps{
		Orders:    repos.orders,
		Payments:  repos.payments,
		Lifecycle: a.orders,
		Tx:        repos.tx,
		Gateway: gateway.NewSimulated(gateway.Config{
			ChargeDelay: cfg.Payments.MobileMoneyDelay,
			VerifyDelay: cfg.Payments.VerifyDelay,
		}, clk),
		Broadcaster: broadcaster,
		Audit:       recorder,
		Metrics:     a.metrics,
		Clock:       clk,
		Logger:      lgr,
	}, payment.Options{
		ProviderTimeout:       cfg.Payments.ProviderTimeout,
		CancelOnMobileFailure: cfg.Payments.CancelOnMobileFailure,
	})

	a.queue = queue.NewService(queue.Deps{
		Orders:      repos.orders,
		Lifecycle:   a.orders,
		Tx:          repos.tx,
		Broadcaster: broadcaster,
		Audit:       recorder,
		Metrics:     a.metrics,
		Clock:       clk,
		Logger:      lgr,
	}, queue.Options{
		DefaultLimit: cfg.Queue.DefaultLimit,
		ReadyTimeout: cfg.Queue.ReadyTimeout,
	})

	return a, nil
}

func runAPI(ctx context.Context, cfg *config.Config, storage, events string, lgr logger.Logger) error {
	clk := clock.NewSystem()
	a, err := buildApp(ctx, cfg, storage, events, clk, lgr)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Orders:         a.orders,
		Payments:       a.payments,
		Queue:          a.queue,
		Storage:        a.storage,
		Metrics:        a.metrics,
		MetricsHandler: a.metrics.Handler(),
		Clock:          clk,
		Logger:         lgr,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lgr.Info("service_started", fmt.Sprintf("Canteen API started on port %d", cfg.Server.Port), "startup", map[string]interface{}{
			"port":    cfg.Server.Port,
			"storage": storage,
			"events":  events,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.queue.RunReaper(gctx, cfg.Queue.ReapInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down Canteen API", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runReaper(ctx context.Context, cfg *config.Config, events string, lgr logger.Logger) error {
	a, err := buildApp(ctx, cfg, "postgres", events, clock.NewSystem(), lgr)
	if err != nil {
		return err
	}
	defer a.Close()

	// One sweep on startup so a restarted reaper does not wait a full interval.
	if _, err := a.queue.Reap(ctx); err != nil {
		lgr.Error("reap_failed", "Initial reap sweep failed", "startup", nil, err)
	}
	a.queue.RunReaper(ctx, cfg.Queue.ReapInterval)
	return nil
}

func runEventSubscriber(ctx context.Context, cfg *config.Config, channels []string, lgr logger.Logger) error {
	for _, ch := range channels {
		if !domain.ValidSubscription(ch) {
			return fmt.Errorf("invalid channel %q", ch)
		}
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	consumer := rabbitmq.NewConsumer(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Prefetch, lgr)
	handler := amqpAdapter.NewEventHandler(os.Stdout, lgr)

	lgr.Info("service_started", "Event subscriber started", "startup", map[string]interface{}{
		"channels": channels,
	})

	if err := consumer.Consume(ctx, channels, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func splitChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}
