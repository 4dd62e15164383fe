package repo

import (
	"context"
	"encoding/json"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/pkg/config"

	"go.uber.org/zap"
)

type Transactions interface {
	// ProcessInbound пишет событие в inbox consumer и в той же транзакции вызывает handle.
	// Ошибка handle откатывает и маркер inbox. Дубликат: appers.ErrDuplicateEvent, handle не вызывается.
	ProcessInbound(ctx context.Context, consumer string, evt entity.Event, handle func(ctx context.Context) error) error
	GetOperationsFromOutbox(ctx context.Context, c config.RelayConfig) ([]entity.OutboxEntry, error)
}

type TransactionsImpl struct {
	repo   Repo
	logger *zap.SugaredLogger
}

func NewTransactions(repo Repo, logger *zap.SugaredLogger) *TransactionsImpl {
	return &TransactionsImpl{repo: repo, logger: logger}
}

func (t *TransactionsImpl) ProcessInbound(ctx context.Context, consumer string, evt entity.Event, handle func(ctx context.Context) error) error {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	// ошибки репозиториев в handle и коммита уходят в ветку паузы consumer
	err := t.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		inserted, err := t.repo.InsertInbox(ctx, &entity.InboxEntry{
			EventID:   evt.ID,
			Consumer:  consumer,
			EventType: evt.Type,
			Payload:   payload,
		})
		if err != nil {
			t.logger.Errorf("[ID %s] insert inbox failed: %v", evt.ID, err)
			return appers.WrapStorage("insert inbox", err)
		}
		if !inserted {
			return appers.ErrDuplicateEvent
		}

		return handle(ctx)
	})
	return appers.WrapStorage("inbound "+evt.Type, err)
}

func (t *TransactionsImpl) GetOperationsFromOutbox(ctx context.Context, c config.RelayConfig) ([]entity.OutboxEntry, error) {
	var events []entity.OutboxEntry
	err := t.repo.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		events, err = t.repo.ReserveOutboxBatch(txCtx, c.Lease, c.BatchSize, c.MaxAttempts)
		return err
	})
	if err != nil {
		t.logger.Errorw("reserve outbox batch failed", "err", err)
		return nil, err
	}
	return events, nil
}
