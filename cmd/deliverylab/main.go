package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davicafu/deliverylab/internal/config"
	"github.com/davicafu/deliverylab/internal/infra/analytics/clickhouse"
	outboxMongo "github.com/davicafu/deliverylab/internal/infra/db/mongodb"
	infraEvents "github.com/davicafu/deliverylab/internal/infra/events"
	"github.com/davicafu/deliverylab/internal/infra/flowlog"
	infraRelayer "github.com/davicafu/deliverylab/internal/infra/relayer"
	orderApp "github.com/davicafu/deliverylab/internal/order/application"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	orderEvents "github.com/davicafu/deliverylab/internal/order/infra/inbound/events"
	orderHttp "github.com/davicafu/deliverylab/internal/order/infra/inbound/http"
	orderCache "github.com/davicafu/deliverylab/internal/order/infra/outbound/cache"
	orderRepo "github.com/davicafu/deliverylab/internal/order/infra/outbound/db/mongodb"
	"github.com/davicafu/deliverylab/pkg/logger"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	sharedCache "github.com/davicafu/deliverylab/shared/platform/cache"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const analyticsFlushInterval = 2 * time.Second

// consumerSpec describe un consumidor: su grupo, sus topics y su handler.
type consumerSpec struct {
	name    string
	group   string
	topics  []string
	handler sharedBus.MessageHandler
}

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()

	os.Exit(exitCode(log, err))
}

// exitCode registra el final del proceso y vacía el logger antes de salir.
func exitCode(log *zap.Logger, err error) int {
	defer func() { _ = log.Sync() }()

	if err != nil {
		log.Error("❌ deliverylab stopped with error", zap.Error(err))
		return 1
	}
	log.Info("👋 deliverylab stopped")
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---------------- DB ----------------
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(closeCtx)
	}()

	orders, err := orderRepo.NewOrderRepoMongoDB(ctx, mongoClient, cfg.MongoDB)
	if err != nil {
		return err
	}
	if err := orders.EnsureIndexes(ctx); err != nil {
		return err
	}
	catalog := orderRepo.NewCatalogRepoMongoDB(mongoClient, cfg.MongoDB)
	log.Info("✅ MongoDB conectado", zap.String("db", cfg.MongoDB))

	// ---------------- Cache ----------------
	cacheInstance, closeCache := newCache(ctx, cfg, log)
	defer closeCache()

	// ------------- Flow log ---------------
	flow, err := flowlog.New(cfg.FlowLogPath, log)
	if err != nil {
		return err
	}
	defer flow.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.ClickHouseAddr != "" {
		analytics, err := clickhouse.NewFlowAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB, log)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica desactivada", zap.Error(err))
		} else {
			defer analytics.Close()
			if err := analytics.InitSchema(ctx); err != nil {
				return err
			}
			flow.WithSink(analytics)
			g.Go(func() error {
				analytics.Run(gctx, analyticsFlushInterval)
				return nil
			})
		}
	}

	// ---------------- Events ---------------
	var (
		transport sharedBus.Transport
		newReader func(group string, topics ...string) infraEvents.MessageReader
	)
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))
		kafkaClient, err := infraEvents.ConnectKafka(ctx, infraEvents.KafkaConfig{
			Brokers:     cfg.KafkaBrokers,
			ClientID:    cfg.KafkaClientID,
			DialTimeout: cfg.KafkaDialWait,
		}, orderDomain.Topics(), log)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		transport = kafkaClient
		newReader = func(group string, topics ...string) infraEvents.MessageReader {
			return kafkaClient.NewReader(group, topics...)
		}
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria")
		bus := infraEvents.NewInMemoryBus()
		if _, err := infraEvents.EnsureTopics(ctx, bus, orderDomain.Topics(), log); err != nil {
			return err
		}
		transport = bus
		newReader = func(group string, topics ...string) infraEvents.MessageReader {
			return bus.NewReader(group, topics...)
		}
	}
	publisher := infraEvents.NewPublisher(transport, flow, log)

	// --------------- Servicio --------------
	service := orderApp.NewOrderService(orders, catalog, publisher, cacheInstance, orderApp.ServiceConfig{
		Mode:     orderApp.DeliveryMode(cfg.DeliveryMode),
		CacheTTL: int(cfg.CacheTTL.Seconds()),
	}, log)

	scheduler := orderApp.NewAdvanceScheduler(log)
	defer scheduler.Stop()

	// ---------------- Consumers ---------------
	consumers := []consumerSpec{
		{
			name:    "order",
			group:   orderDomain.OrderServiceGroup,
			topics:  []string{orderDomain.TopicOrderCreated, orderDomain.TopicOrderUpdated},
			handler: orderEvents.NewOrderConsumer(service, scheduler, cfg.ConsumerTimeout, log),
		},
		{
			name:   "restaurant",
			group:  orderDomain.RestaurantServiceGroup,
			topics: []string{orderDomain.TopicRestaurantNotification},
			handler: orderEvents.NewRestaurantConsumer(service, scheduler, orderEvents.AutoAdvanceConfig{
				Enabled: cfg.AutoAdvanceEnabled,
				Delay:   cfg.AutoAdvanceDelay,
			}, cfg.ConsumerTimeout, log),
		},
		{
			name:    "notification",
			group:   orderDomain.NotificationServiceGroup,
			topics:  []string{orderDomain.TopicCustomerNotification},
			handler: orderEvents.NewNotificationConsumer(service, orderEvents.NewLogNotifier(log), cfg.ConsumerTimeout, log),
		},
	}
	for _, spec := range consumers {
		reader := newReader(spec.group, spec.topics...)
		adapter := infraEvents.NewConsumerAdapter(spec.name, reader, spec.handler, flow, log)
		g.Go(func() error { return adapter.Run(gctx) })
	}

	// ------------ Outbox Worker ------------
	if orderApp.DeliveryMode(cfg.DeliveryMode) == orderApp.DeliveryOutbox {
		outboxRepo := outboxMongo.NewOutboxRepoMongoDB(mongoClient, cfg.MongoDB)
		if err := outboxRepo.EnsureIndexes(ctx); err != nil {
			return err
		}
		worker := infraRelayer.NewOutboxWorker(outboxRepo, publisher, orderDomain.NewEventRegistry(), cfg.OutboxPeriod, cfg.OutboxLimit, log)
		g.Go(func() error {
			worker.Start(gctx)
			return nil
		})
	}

	// ---------------- HTTP ----------------
	router, err := orderHttp.NewRouter(orderHttp.NewOrderHandler(service, log), cfg.CORSOrigins, log)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("🛑 Shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newCache usa Redis si está configurado y responde; si no, la LRU en proceso.
func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (sharedCache.Cache, func()) {
	if cfg.RedisAddr != "" {
		rdb, err := orderCache.ConnectRedis(ctx, cfg.RedisAddr)
		if err == nil {
			log.Info("✅ Redis conectado, cache habilitado")
			return orderCache.NewRedisOrderCache(rdb, cfg.CacheTTL), func() { _ = rdb.Close() }
		}
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
	}
	return orderCache.NewLRUOrderCache(cfg.CacheSize, cfg.CacheTTL), func() {}
}
