//go:build wireinject
// +build wireinject

package di

import (
	"AnnuityPricer/pkg/config"
	"AnnuityPricer/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideEventStore,
		ProvideEventSink,
		ProvideKafkaConsumer,

		// Use cases
		ProvidePricer,
		ProvideQuoteService,
		ProvideEventRecorder,
		ProvideExportService,
		ProvideStatsService,

		// HTTP
		ProvideRateLimiter,
		ProvidePricerHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
