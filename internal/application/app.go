package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"flightsaga/internal/application/common"
	"flightsaga/internal/application/repo"
	"flightsaga/internal/application/repo/memrepo"
	"flightsaga/internal/application/service"
	use_cases "flightsaga/internal/application/use-cases"
	"flightsaga/internal/controllers/cron"
	"flightsaga/internal/controllers/handler"
	"flightsaga/internal/controllers/listener"
	"flightsaga/internal/transport/notifier"
	"flightsaga/internal/transport/producer"
	"flightsaga/pkg/broker"
	"flightsaga/pkg/config"
	"flightsaga/pkg/db"
	"flightsaga/pkg/httpclient"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type App struct {
	ctx            context.Context
	conf           *config.Config
	logger         *zap.SugaredLogger
	postgres       *db.Postgres
	httpServer     *fiber.App
	stream         stream.Stream
	notifier       notifier.Notifier
	httpClient     *httpclient.Client
	cronController *cron.Controller

	workers sync.WaitGroup
}

func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	httpServer *fiber.App,
	m *metrics.Metrics) (*App, error) {
	//Логируем версию приложения
	logger.Infof("Запуск Flight Saga версии: %s, сервисы: %v", common.Version, conf.Service.Services())

	app := &App{
		ctx:        ctx,
		conf:       conf,
		logger:     logger,
		httpServer: httpServer,
	}

	store, err := app.newStorage(ctx, m)
	if err != nil {
		return nil, err
	}

	app.stream, err = app.newStream()
	if err != nil {
		app.closeStorage()
		return nil, err
	}

	app.notifier, err = app.newNotifier(m)
	if err != nil {
		app.closeStorage()
		_ = app.stream.Close()
		return nil, err
	}

	tx := repo.NewTransactions(store, logger)
	streamProducer := producer.NewProducer(app.stream, conf.Broker.Driver, logger, conf.Broker.Kafka.MaxAttempts, m)
	srv := service.NewService(store, tx, streamProducer, app.stream, app.newGateway(), app.notifier, logger, conf, m)
	uc := use_cases.NewUseCase(srv, logger, conf)

	h := handler.NewHandler(uc, logger, conf.Service.Name)
	handler.NewRouter(h, httpServer, conf, logger).RegisterRouter()

	// Инициализация cron контроллера
	app.cronController = cron.NewController(ctx, logger)
	if err := app.cronController.RegisterPendingMonitorJob(uc, conf.Cron); err != nil {
		_ = app.Shutdown()
		return nil, fmt.Errorf("не удалось зарегистрировать cron задачу: %w", err)
	}
	app.cronController.Start()

	app.goWorker(func() { uc.RunRelay(ctx) })

	for _, s := range conf.Service.Services() {
		c := listener.NewStreamConsumer(app.stream, uc, s, conf.Service.Instance, conf.Consumer, logger, m)
		logger.Infof("🚀 Запуск consumer группы %s", c.Group())
		app.goWorker(func() { c.Run(ctx) })
	}

	return app, nil
}

func (a *App) goWorker(fn func()) {
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		fn()
	}()
}

func (a *App) newStorage(ctx context.Context, m *metrics.Metrics) (repo.Repo, error) {
	switch strings.ToLower(a.conf.Storage.Driver) {
	case config.DriverMemory:
		a.logger.Warn("хранилище в памяти: данные не переживут перезапуск")
		return memrepo.New(a.logger), nil
	case config.DriverPostgres, "":
		pg, err := db.NewPostgres(ctx, a.conf.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.postgres = pg
		return repo.NewRepo(pg, a.logger, m), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.conf.Storage.Driver)
	}
}

func (a *App) newStream() (stream.Stream, error) {
	switch strings.ToLower(a.conf.Broker.Driver) {
	case config.DriverMemory:
		return stream.NewMemory(), nil
	case config.DriverKafka, "":
		kafka, err := broker.NewKafkaBroker(a.conf.Broker.Kafka, a.logger)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		a.logger.Infof("🚀 Kafka broker создан успешно. Topic: %s", a.conf.Broker.Kafka.Topic)
		return kafka, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", a.conf.Broker.Driver)
	}
}

func (a *App) newNotifier(m *metrics.Metrics) (notifier.Notifier, error) {
	if a.conf.Notifier.RabbitURL == "" {
		return notifier.Nop{}, nil
	}
	n, err := notifier.NewRabbitNotifier(a.conf.Notifier.RabbitURL, a.conf.Notifier.Exchange, a.logger, m)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq notifier: %w", err)
	}
	return n, nil
}

func (a *App) newGateway() service.PaymentGateway {
	if a.conf.Payment.GatewayURL == "" {
		a.logger.Info("платёжный шлюз не задан, используется заглушка")
		return service.StubGateway{}
	}
	a.httpClient = httpclient.NewClient(a.conf.HTTPClient)
	client := httpclient.NewRetryClient(a.httpClient, a.conf.HTTPClient.MaxRetries, a.logger)
	return service.NewHTTPGateway(client, a.conf.Payment.GatewayURL)
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

// Shutdown ждёт остановки relay и consumers; ctx приложения должен быть уже отменён
func (a *App) Shutdown() error {
	// Останавливаем cron задачи
	if a.cronController != nil {
		a.cronController.Stop()
	}
	err := a.httpServer.Shutdown()

	a.workers.Wait()

	if a.httpClient != nil {
		a.httpClient.CloseIdle()
	}
	if a.notifier != nil {
		if cerr := a.notifier.Close(); cerr != nil {
			a.logger.Errorf("notifier close: %v", cerr)
		}
	}
	if a.stream != nil {
		if cerr := a.stream.Close(); cerr != nil {
			a.logger.Errorf("stream close: %v", cerr)
		}
	}
	a.closeStorage()
	return err
}

func (a *App) closeStorage() {
	if a.postgres != nil {
		a.postgres.Close()
		a.logger.Info("postgres db connection closed")
	}
}
