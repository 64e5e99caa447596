package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ThierryFotabong/feeya/configs"
	"github.com/ThierryFotabong/feeya/internal/application/address"
	appbasket "github.com/ThierryFotabong/feeya/internal/application/basket"
	appcheckout "github.com/ThierryFotabong/feeya/internal/application/checkout"
	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	domaddress "github.com/ThierryFotabong/feeya/internal/domain/address"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	domcheckout "github.com/ThierryFotabong/feeya/internal/domain/checkout"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/geocoder"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/gormstore"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/id"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/kafka"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/memory"
	infraobs "github.com/ThierryFotabong/feeya/internal/infrastructure/observability"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/observability/oteltrace"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/observability/prometrics"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/observability/zaplogger"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/outbox"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/rabbitmq"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/rediscache"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/sandbox"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/stripe"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/pkg/logging"
	httppresentation "github.com/ThierryFotabong/feeya/internal/presentation/http"
	workerpresentation "github.com/ThierryFotabong/feeya/internal/presentation/worker"
)

const kafkaSignatureHeader = "Stripe-Signature"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configs.Load(getenvDefault("CONFIG_DIR", "configs"), getenvDefault("ENV", "dev"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))
	oteltrace.InstallPropagator()
	tel := infraobs.New(oteltrace.New(cfg.App.Name), zaplogger.New(systemLogger), counters, histograms)
	log := tel.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStores, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	var (
		lock  apppayment.EventLock
		cache apporder.StatusCache = memory.NewStatusCache()
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		lock = rediscache.NewEventLock(rdb, cfg.Redis.LockTTL)
		cache = rediscache.NewStatusCache(rdb, cfg.Redis.StatusTTL)
	} else {
		log.Warn("redis_disabled", observability.F("status_cache", "memory"))
	}

	bus := outbox.NewBus(log, outbox.Config{})
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	var index appinventory.SearchIndex
	if cfg.Rabbit.URL != "" {
		conn, ch, err := rabbitmq.Dial(cfg.Rabbit.URL)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		pub, err := rabbitmq.NewPublisher(ch, cfg.Rabbit.Exchange)
		if err != nil {
			return err
		}
		outbox.NewRelay(pub, tel,
			domorder.ConfirmedEvent{}.EventName(),
			domorder.StatusChangedEvent{}.EventName(),
			dompay.RefundRequiredEvent{}.EventName(),
		).Attach(bus)
		index = pub
	} else {
		log.Warn("rabbitmq_disabled")
	}

	var provider dompay.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = stripe.NewProvider(cfg.Stripe.SecretKey, nil)
	} else {
		provider = sandbox.New()
		log.Warn("payment_provider_sandbox")
	}
	verifier := stripe.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)

	var geo domaddress.Geocoder
	if cfg.Geocoder.BaseURL != "" {
		geo = geocoder.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.APIKey, cfg.Geocoder.Region, cfg.Geocoder.Timeout)
	}

	zones, err := cfg.Zones()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	pricer, err := delivery.NewPricer(zones, loc)
	if err != nil {
		return err
	}

	ids := id.NewUUIDGenerator()
	materializer := apporder.NewMaterializer(apporder.MaterializerDeps{
		Orders:    st.orders,
		Provider:  provider,
		Snapshots: st.snapshots,
		Baskets:   st.baskets,
		Catalog:   st.inventory,
		Audit:     st.payments,
		Publisher: bus,
		IDs:       ids,
		Numbers:   id.NewNumberGenerator(),
	}, tel)
	lifecycle := apporder.NewLifecycle(st.orders, bus, cache, ids, tel)
	listener := apppayment.NewListener(apppayment.ListenerDeps{
		Inbox:        st.payments,
		Audit:        st.payments,
		Orders:       st.orders,
		Materializer: materializer,
		Lifecycle:    lifecycle,
		Lock:         lock,
		IDs:          ids,
	}, tel)

	apporder.NewWorker(st.orders, bus, cache, tel).Start()
	appinventory.NewWorker(bus, index, tel).Start()

	handler := httppresentation.NewHandler(httppresentation.Services{
		Baskets:   appbasket.NewService(st.baskets, st.inventory, st.inventory, ids, cfg.App.MaxLineQty, tel),
		Pricer:    pricer,
		Addresses: address.NewService(st.addresses, geo, ids, cfg.Geocoder.Timeout, tel),
		Checkout: appcheckout.NewService(appcheckout.Deps{
			Baskets:      st.baskets,
			Catalog:      st.inventory,
			Addresses:    st.addresses,
			Pricer:       pricer,
			Provider:     provider,
			Snapshots:    st.snapshots,
			Orders:       st.orders,
			Audit:        st.payments,
			Materializer: materializer,
		}, cfg.App.Currency, tel),
		Orders:   lifecycle,
		Catalog:  appinventory.NewService(st.inventory, bus, tel),
		Listener: listener,
		Verifier: verifier,
	}, cfg.App.Currency, cfg.App.RequestTimeout, log)

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	authz := httppresentation.NewAuthz(httppresentation.AuthConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   cfg.Security.Issuer,
		Audience: cfg.Security.Audience,
		Leeway:   cfg.Security.Leeway,
	})
	server := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      httppresentation.NewRouter(handler, authz, tel, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		group, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			return fmt.Errorf("kafka group: %w", err)
		}
		events := workerpresentation.NewPaymentEvents(verifier, listener, tel)
		consumer = kafka.NewConsumer(group, []string{cfg.Kafka.TopicWebhooks},
			func(ctx context.Context, m kafka.Message) error {
				return events.Handle(ctx, m.Value, m.Header(kafkaSignatureHeader))
			},
			kafka.Options{
				Attempts:  cfg.Kafka.Attempts,
				Backoff:   cfg.Kafka.Backoff,
				Retryable: workerpresentation.Retryable,
			},
			log,
		)
		g.Go(func() error {
			log.Info("kafka_consumer_start", observability.F("topic", cfg.Kafka.TopicWebhooks))
			if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), orDuration(cfg.HTTP.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http_server_shutdown_error", observability.Err(err))
		} else {
			log.Info("http_server_stopped")
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				log.Error("kafka_consumer_close_error", observability.Err(err))
			}
		}
		return nil
	})

	return g.Wait()
}

type paymentStore interface {
	dompay.AuditLog
	dompay.Inbox
}

type stores struct {
	inventory dominv.Repository
	baskets   dombasket.Repository
	snapshots domcheckout.Repository
	orders    domorder.Repository
	addresses domaddress.Repository
	payments  paymentStore
}

// openStores uses MySQL when a DSN is configured and a seeded in-memory store otherwise.
func openStores(cfg configs.Config, log observability.Logger) (stores, func(), error) {
	if cfg.MySQL.DSN != "" {
		db, err := gormstore.Open(cfg.MySQL.DSN, gormstore.Options{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			AutoMigrate:     cfg.MySQL.AutoMigrate,
		})
		if err != nil {
			return stores{}, nil, fmt.Errorf("mysql: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return stores{
			inventory: gormstore.NewInventoryRepository(db),
			baskets:   gormstore.NewBasketRepository(db),
			snapshots: gormstore.NewCheckoutRepository(db),
			orders:    gormstore.NewOrderRepository(db),
			addresses: gormstore.NewAddressRepository(db),
			payments:  gormstore.NewPaymentRepository(db),
		}, closeDB, nil
	}

	products, err := cfg.SeedProducts()
	if err != nil {
		return stores{}, nil, err
	}
	store := memory.NewStore()
	store.Seed(products...)
	log.Warn("mysql_disabled", observability.F("store", "memory"), observability.F("seeded_products", len(products)))
	return stores{
		inventory: memory.NewInventoryRepository(store),
		baskets:   memory.NewBasketRepository(store),
		snapshots: memory.NewCheckoutRepository(store),
		orders:    memory.NewOrderRepository(store),
		addresses: memory.NewAddressRepository(store),
		payments:  memory.NewPaymentRepository(store),
	}, func() {}, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
