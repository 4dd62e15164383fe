package service

import (
	"context"
	"sync"
	"time"

	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"

	"github.com/gofrs/uuid"
)

// RelayEventRun досылает записи outbox, которые не подтвердила inline-публикация
func (s *ServiceImpl) RelayEventRun(ctx context.Context) {
	s.logger.Infow("relay started", "workers", s.cfg.Workers, "batch", s.cfg.BatchSize, "lease", s.cfg.Lease.String())

	jobs := make(chan entity.OutboxEntry, s.cfg.BatchSize*2)

	// стартуем воркеров; выходим только после того, как они доработают
	var wg sync.WaitGroup
	defer wg.Wait()
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id, jobs)
		}(i)
	}

	ticker := time.NewTicker(s.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("relay stopping")
			return
		case <-ticker.C:
			events, err := s.ReserveRelayBatch(ctx)
			if err != nil {
				continue
			}

			s.logger.Debugf("len jobs: %d, len events: %d", len(jobs), len(events))
			for _, e := range events {
				select {
				case jobs <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// ReserveRelayBatch берёт под lease пачку просроченных записей outbox
func (s *ServiceImpl) ReserveRelayBatch(ctx context.Context) ([]entity.OutboxEntry, error) {
	events, err := s.transactions.GetOperationsFromOutbox(ctx, *s.cfg)
	if err != nil {
		s.logger.Errorw("get operations from outbox failed", "err", err)
		return nil, err
	}
	if s.m != nil {
		s.m.Outbox.RelayBatchSize.Observe(float64(len(events)))
	}
	return events, nil
}

func (s *ServiceImpl) worker(ctx context.Context, id int, jobs <-chan entity.OutboxEntry) {
	s.logger.Infow("worker started", "id", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("worker stopping", "id", id)
			return
		case e := <-jobs:
			s.ProcessOne(ctx, id, e)
		}
	}
}

// ProcessOne повторно публикует одну запись outbox (экспортируем для тестирования)
func (s *ServiceImpl) ProcessOne(ctx context.Context, wid int, e entity.OutboxEntry) {
	s.logger.Debugf("[ID %s] relay-process started, workerID: %d, attempt: %d", e.EventID, wid, e.Attempts+1)

	if err := s.producer.Publish(ctx, e); err != nil {
		s.logger.Errorf("[ID %s] stream send failed, err: %v", e.EventID, err)
		result := "failed"
		if e.Attempts+1 >= s.cfg.MaxAttempts {
			result = "gave_up"
		}
		if err := s.markOutboxFailedOrGaveUp(context.WithoutCancel(ctx), e.EventID, e.Attempts, s.cfg.MaxAttempts, common.NextBackoffWithJitter(e.Attempts)); err != nil {
			s.logger.Errorf("[ID %s] outbox status update failed: %v", e.EventID, err)
		}
		s.relayResult(result)
		return
	}

	if err := s.repo.MarkSent(ctx, e.EventID); err != nil {
		// сообщение уже ушло; после lease relay отправит его ещё раз, получатели отсеют дубль
		s.logger.Errorf("[ID %s] mark sent failed, err: %v", e.EventID, err)
		s.relayResult("failed")
		return
	}

	s.relayResult("sent")
	s.logger.Infof("[ID %s] relay-process completed", e.EventID)
}

func (s *ServiceImpl) relayResult(result string) {
	if s.m != nil {
		s.m.Outbox.RelayOperationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *ServiceImpl) markOutboxFailedOrGaveUp(ctx context.Context, eventID uuid.UUID, attempts, maxAttempts int, backoff time.Duration) error {
	if attempts+1 >= maxAttempts {
		return s.repo.MarkGaveUp(ctx, eventID)
	}
	return s.repo.MarkFailedWithBackoff(ctx, eventID, time.Now().UTC().Add(backoff))
}
