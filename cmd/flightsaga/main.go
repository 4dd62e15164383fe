package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"flightsaga/docs"
	"flightsaga/internal/application"
	"flightsaga/internal/application/common"
	"flightsaga/pkg/broker"
	"flightsaga/pkg/config"
	"flightsaga/pkg/httpserver"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// @title           Flight Booking Saga API
// @version         1.0
// @description     Бронирование мест на рейс: хореографическая сага Booking, Flight, Payment

// @BasePath /flightsaga/api

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := observability.InitLogger(conf.LoggingLevel, conf.Service.Name)

	logger.Infof("LOGGING_LEVEL = %s", conf.LoggingLevel)
	if strings.ToLower(conf.LoggingLevel) == "debug" {
		broker.EnableSaramaZapLogs(logger)
	}

	shutdownTracer, err := observability.InitTracer(ctx, conf.Tracing.Endpoint, "flightsaga-"+conf.Service.Name, common.Version)
	if err != nil {
		logger.Fatal(err)
	}

	docs.SwaggerInfo.Host = conf.Server.SwaggerHost
	docs.SwaggerInfo.Schemes = []string{conf.Server.SwaggerSchema}

	m := metrics.New(prometheus.DefaultRegisterer)

	fiberServer := httpserver.NewFiber(conf, m)
	if fiberServer == nil {
		logger.Fatal(errors.New("fiber server is nil"))
	}

	server, err := application.NewApp(ctx, &conf, logger, fiberServer, m)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Infof("Flight saga started successfully, services: %v", conf.Service.Services())
	logger.Info(fmt.Sprintf("Server config: %+v", conf.Server))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("error listening for server: %v", err)
				return
			}

			logger.Infof("server %v closed", conf.Server.Port)
		}
	}()

	//graceful shutdown
	osSignal := <-interrupt
	switch osSignal {
	case os.Interrupt:
		logger.Infof("%v Got SIGINT...", conf.Server.Port)
	case syscall.SIGTERM:
		logger.Infof("%v Got SIGTERM...", conf.Server.Port)
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Errorf("server %v forced to shutdown: %v", conf.Server.Port, err)
	}

	if err := shutdownTracer(context.Background()); err != nil {
		logger.Errorf("tracer shutdown: %v", err)
	}

	logger.Infof("server shutdown %v done", conf.Server.Port)
	_ = logger.Sync()
}
