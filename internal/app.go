package internal

import (
	"chatstat/internal/controllers"
	"chatstat/internal/providers"
	"chatstat/internal/services"
	"chatstat/internal/statistic"
	"chatstat/internal/statistic/interfaces"
	"chatstat/internal/structures"
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

type App struct {
	WebServer *http.Server
}

// NewHandler assembles the HTTP surface: instrumented API routes plus the
// health and metrics endpoints.
func NewHandler(apiController *controllers.ApiController, healthController *controllers.HealthController, conf *structures.Config, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) http.Handler {
	mux := http.NewServeMux()
	// Each API route is instrumented under its own pattern.
	for _, route := range router.GetRoutes() {
		mux.Handle(route.Pattern(), providers.MetricsMiddleware(metrics, route.Handler))
	}
	mux.HandleFunc("GET /health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

func NewApp(apiController *controllers.ApiController, healthController *controllers.HealthController, scheduler interfaces.SchedulerInterface, service services.ActivityServiceInterface, conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) (*App, error) {
	defer logger.Close()
	defer service.Close()

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)
	if conf.Storage.Lock {
		lock, err := statistic.AcquireDirLock(conf.Storage.DataDir)
		if err != nil {
			logger.Errorf(providers.TypeApp, "Unable to lock %s: %s", conf.Storage.DataDir, err)
			return nil, err
		}
		defer lock.Release()
	}

	err := scheduler.Restore()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}
	providers.RegisterStorageGauges(conf, service)

	app := &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      NewHandler(apiController, healthController, conf, router, metrics),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	scheduler.Init()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		scheduler.Stop()
		if perr := scheduler.Persist(); perr != nil {
			err = errors.Join(err, perr)
		}
		return nil, fmt.Errorf("server error: %w", err)
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = app.WebServer.Shutdown(ctx); err != nil {
		return nil, err
	}
	err = scheduler.Persist()
	if err != nil {
		return nil, err
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
