package cron

import (
	"context"

	use_cases "flightsaga/internal/application/use-cases"

	"go.uber.org/zap"
)

// PendingMonitorJob снимает размер pending по группам и статусы outbox в метрики
type PendingMonitorJob struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewPendingMonitorJob(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *PendingMonitorJob {
	return &PendingMonitorJob{
		usecase: usecase,
		logger:  logger,
	}
}

func (j *PendingMonitorJob) Run(ctx context.Context) {
	j.logger.Debug("Запуск проверки незавершённых сообщений")

	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при проверке незавершённых сообщений: %v", r)
		}
	}()

	j.usecase.MonitorBacklog(ctx)
}
