package cron

import (
	"context"
	"fmt"

	use_cases "flightsaga/internal/application/use-cases"
	"flightsaga/pkg/config"

	"go.uber.org/zap"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx),
		logger:    logger,
	}
}

// Поддерживает два режима:
// 1. По расписанию (cron format с секундами): например, "0 */5 * * * *"
// 2. По интервалу: например, "@every 30s"
func (c *Controller) RegisterPendingMonitorJob(usecase use_cases.UseCaser, conf config.Cron) error {
	job := NewPendingMonitorJob(usecase, c.logger)

	spec := conf.PendingMonitor
	if spec == "" {
		spec = "@every 30s"
		c.logger.Warnf("Расписание мониторинга не указано, используется интервал по умолчанию: %s", spec)
	}

	entryID, err := c.scheduler.Add(spec, job)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать мониторинг pending: %w", err)
	}

	c.logger.Infof("Мониторинг pending зарегистрирован с ID: %d, расписание: %s", entryID, spec)
	return nil
}

// Start запускает планировщик задач
func (c *Controller) Start() {
	c.logger.Info("Запуск планировщика cron задач")
	c.scheduler.Start()
}

// Stop останавливает планировщик задач
func (c *Controller) Stop() {
	c.logger.Info("Остановка планировщика cron задач")
	c.scheduler.Stop()
	c.logger.Info("Планировщик cron задач остановлен")
}
