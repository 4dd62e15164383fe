package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *RepoImpl) InsertOutbox(ctx context.Context, e *entity.OutboxEntry, lease time.Duration) error {
	r.logger.Debugf("[ID %s] InsertOutbox started, type: %s", e.EventID, e.EventType)
	status := e.Status
	if status == "" {
		status = entity.OutboxNew
	}
	_, err := r.exec(ctx, "insert_outbox", insertOutboxQuery,
		e.EventID, e.EventType, []byte(e.Payload), e.PartitionKey, string(status), common.PgInterval(lease),
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return nil
}

func (r *RepoImpl) GetOutbox(ctx context.Context, eventID uuid.UUID) (*entity.OutboxEntry, error) {
	var e entity.OutboxEntry
	var status string
	err := r.queryRow(ctx, "get_outbox", getOutbox, []any{eventID},
		&e.EventID, &e.EventType, &e.Payload, &e.PartitionKey, &status, &e.Attempts, &e.NextAttemptAt, &e.InsertedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrOutboxMissing
	case err != nil:
		return nil, fmt.Errorf("get outbox: %w", err)
	}
	e.Status = entity.OutboxStatus(status)
	return &e, nil
}

func (r *RepoImpl) ReserveOutboxBatch(ctx context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEntry, error) {
	r.logger.Debugf("[lease: %s, limit: %d, maxAttempts: %d] ReserveOutboxBatch started", lease, limit, maxAttempts)

	rows, err := r.query(ctx, "reserve_outbox", reserveBatchSQL, common.PgInterval(lease), limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("reserve outbox batch: %w", err)
	}
	defer rows.Close()

	var res []entity.OutboxEntry
	for rows.Next() {
		var e entity.OutboxEntry
		var status string
		if err := rows.Scan(
			&e.EventID, &e.EventType, &e.Payload, &e.PartitionKey,
			&status, &e.Attempts, &e.NextAttemptAt, &e.InsertedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reserved outbox: %w", err)
		}
		e.Status = entity.OutboxStatus(status)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reserve rows err: %w", err)
	}

	return res, nil
}

func (r *RepoImpl) MarkSent(ctx context.Context, eventID uuid.UUID) error {
	result, err := r.exec(ctx, "mark_sent", markSentSQL, eventID, string(entity.OutboxSent))
	if err != nil {
		return fmt.Errorf("outbox mark sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("[ID %s] %w", eventID, appers.ErrOutboxMissing)
	}
	return nil
}

func (r *RepoImpl) MarkFailedWithBackoff(ctx context.Context, eventID uuid.UUID, nextAttemptAt time.Time) error {
	_, err := r.exec(ctx, "mark_failed", markFailedSQL, eventID, string(entity.OutboxFailed), nextAttemptAt)
	if err != nil {
		return fmt.Errorf("outbox mark failed: %w", err)
	}

	return nil
}

func (r *RepoImpl) MarkGaveUp(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.exec(ctx, "mark_gave_up", markGaveUpSQL, eventID, string(entity.OutboxGaveUp))
	if err != nil {
		return fmt.Errorf("outbox mark gave_up: %w", err)
	}

	return nil
}

func (r *RepoImpl) CountOutboxByStatus(ctx context.Context) (map[entity.OutboxStatus]int, error) {
	rows, err := r.query(ctx, "count_outbox", countOutboxByStatus)
	if err != nil {
		return nil, fmt.Errorf("count outbox: %w", err)
	}
	defer rows.Close()

	res := make(map[entity.OutboxStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		res[entity.OutboxStatus(status)] = n
	}
	return res, rows.Err()
}
