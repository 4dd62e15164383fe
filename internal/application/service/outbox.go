package service

import (
	"context"
	"encoding/json"
	"fmt"

	"flightsaga/internal/application/entity"
	"flightsaga/pkg/db"

	"github.com/gofrs/uuid"
)

// Publish генерирует event_id, пишет outbox в транзакции вызывающего (если она есть)
// и после коммита отправляет запись в stream. Ошибка отправки не возвращается:
// строка остаётся NEW и её дошлёт relay после истечения lease.
func (s *ServiceImpl) Publish(ctx context.Context, p entity.Payload) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate event id: %w", err)
	}

	evt, err := entity.NewEvent(id, p)
	if err != nil {
		return uuid.Nil, err
	}
	envelope, err := json.Marshal(evt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal envelope: %w", err)
	}

	entry := entity.OutboxEntry{
		EventID:      id,
		EventType:    evt.Type,
		Payload:      envelope,
		PartitionKey: entity.PartitionKey(id, p),
		Status:       entity.OutboxNew,
	}

	if err := s.repo.InsertOutbox(ctx, &entry, s.cfg.Lease); err != nil {
		s.logger.Errorf("[ID %s] outbox insert failed: %v", id, err)
		return uuid.Nil, fmt.Errorf("insert outbox: %w", err)
	}
	s.logger.Debugf("[ID %s] %s stored in outbox, key=%s", id, evt.Type, entry.PartitionKey)

	db.AfterCommit(ctx, func(ctx context.Context) {
		s.publishStored(context.WithoutCancel(ctx), entry)
	})

	return id, nil
}

func (s *ServiceImpl) publishStored(ctx context.Context, e entity.OutboxEntry) {
	if err := s.producer.Publish(ctx, e); err != nil {
		s.logger.Warnf("[ID %s] inline publish failed, left for relay: %v", e.EventID, err)
		return
	}
	if err := s.repo.MarkSent(ctx, e.EventID); err != nil {
		// запись в stream уже есть; relay может отправить её повторно, inbox это поглотит
		s.logger.Errorf("[ID %s] mark sent failed: %v", e.EventID, err)
	}
}
