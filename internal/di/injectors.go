//go:build wireinject
// +build wireinject

package di

import (
	"chatstat/internal"
	"chatstat/internal/controllers"
	"chatstat/internal/providers"
	"chatstat/internal/services"
	"chatstat/internal/statistic"
	"chatstat/internal/structures"
	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		services.NewActivityService,
		services.NewPersister,
		statistic.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
