package di

import (
	"context"
	"fmt"
	"time"

	"AnnuityPricer/internal/domain/repository"
	"AnnuityPricer/internal/handler/api"
	"AnnuityPricer/internal/pricing"
	internalrepo "AnnuityPricer/internal/repository"
	"AnnuityPricer/internal/service/ratelimit"
	"AnnuityPricer/internal/usecase"
	"AnnuityPricer/pkg/cache"
	pkgch "AnnuityPricer/pkg/clickhouse"
	"AnnuityPricer/pkg/config"
	xhttp "AnnuityPricer/pkg/http"
	pkgkafka "AnnuityPricer/pkg/kafka"
	applogger "AnnuityPricer/pkg/logger"
	"AnnuityPricer/pkg/metrics"
	"AnnuityPricer/pkg/server"

	"github.com/shopspring/decimal"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "annuity-pricer",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, l.Close, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePricer builds the engine with the deployment custody rate and rounding.
func ProvidePricer(cfg *config.Config) (*pricing.Pricer, error) {
	p, err := pricing.New(pricing.Config{
		CustodyRate: decimal.NewFromFloat(cfg.Pricing.CustodyRate),
		Rounding:    pricing.RoundingPolicy(cfg.Pricing.Rounding),
	})
	if err != nil {
		return nil, fmt.Errorf("pricer: %w", err)
	}
	return p, nil
}

// ProvideClickHouseClient connects when a backend needs ClickHouse and
// returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.UsesClickHouse() {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideEventStore returns the ClickHouse store with its schema applied, or
// the no-op store when no ClickHouse client is configured.
func ProvideEventStore(client *pkgch.Client, l *applogger.Logger) (repository.EventStore, error) {
	if client == nil {
		l.Warn("event store disabled, stats will be empty")
		return internalrepo.NoopEventStore{}, nil
	}
	store := internalrepo.NewClickHouseEventStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, store.Schema(client.Database())); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", client.Database()))
	return store, nil
}

// ProvideKafkaProducer creates a producer for the kafka backend, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if cfg.Events.Backend != "kafka" {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventSink picks where /collect writes: the Kafka topic or the store.
func ProvideEventSink(cfg *config.Config, store repository.EventStore, producer *pkgkafka.Producer) repository.EventSink {
	if cfg.Events.Backend == "kafka" && producer != nil {
		return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
	}
	return store
}

// ProvideKafkaConsumer builds the consumer that moves published events into
// the store. It is nil unless the kafka backend is active.
func ProvideKafkaConsumer(
	cfg *config.Config,
	l *applogger.Logger,
	store repository.EventStore,
	m repository.Metrics,
) (*pkgkafka.Consumer, error) {
	if cfg.Events.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaEventsHandler(cfg.Kafka.Topic, store, m))
	consumer.WithConsumerHook(pkgkafka.TraceHook)
	return consumer, nil
}

// ProvideCache builds the stats cache: memory L1 plus Redis L2 when enabled.
// An unreachable Redis degrades to memory only.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func()) {
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemoryEntries),
		cache.WithMemoryDefaultTTL(cfg.Cache.StatsTTL),
		cache.WithMemoryCleanup(time.Minute),
	)
	var remote cache.Service
	if cfg.Cache.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			cache.WithRedisPool(10, 2, 5*time.Second),
		)
		if err != nil {
			l.Warn("redis cache unavailable, using memory only",
				applogger.String("addr", cfg.Cache.Redis.Addr),
				applogger.Error(err))
		} else {
			remote = rc
		}
	}
	c := cache.NewLayeredCache(mem, remote, cfg.Cache.StatsTTL)
	return c, func() { _ = c.Close() }
}

// ProvideRateLimiter returns the /collect limiter, nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.PerSec)
}

func ProvideQuoteService(p *pricing.Pricer, m repository.Metrics, l *applogger.Logger) *usecase.QuoteService {
	return usecase.NewQuoteService(p, m, l)
}

func ProvideEventRecorder(cfg *config.Config, sink repository.EventSink, m repository.Metrics, l *applogger.Logger) *usecase.EventRecorder {
	return usecase.NewEventRecorder(sink, cfg.Events.Backend, cfg.Events.RetryMax, cfg.Events.RetryBackoff, m, l)
}

func ProvideExportService(cfg *config.Config, store repository.EventStore, l *applogger.Logger) *usecase.ExportService {
	return usecase.NewExportService(store, cfg.Events.CSVLimit, l)
}

func ProvideStatsService(cfg *config.Config, store repository.EventStore, c cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.StatsService {
	return usecase.NewStatsService(store, c, cfg.Cache.StatsTTL, m, l)
}

func ProvidePricerHandler(
	l *applogger.Logger,
	quotes *usecase.QuoteService,
	recorder *usecase.EventRecorder,
	export *usecase.ExportService,
	stats *usecase.StatsService,
	store repository.EventStore,
	limiter *ratelimit.Limiter,
) *api.PricerEchoHandler {
	return api.NewPricerEchoHandler(l, quotes, recorder, export, stats, store, limiter)
}

// ProvideHTTPServer builds the echo server with the configured middleware.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.PricerEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS.AllowOrigins, cfg.Server.CORS.AllowCredentials),
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(""))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the lifecycle. When Kafka is active and a collect
// topic is set, error logs are also aggregated onto that topic.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	limiter *ratelimit.Limiter,
) *server.App {
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AttachCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectThreshold,
			Topic:          cfg.Log.CollectTopic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, l, srv, consumer, limiter)
}
