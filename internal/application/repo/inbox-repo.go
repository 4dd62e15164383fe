package repo

import (
	"context"
	"fmt"

	"flightsaga/internal/application/entity"
)

// InsertInbox: ON CONFLICT DO NOTHING, дубликат виден по RowsAffected() == 0
func (r *RepoImpl) InsertInbox(ctx context.Context, e *entity.InboxEntry) (bool, error) {
	result, err := r.exec(ctx, "insert_inbox", insertInbox,
		e.EventID, e.Consumer, e.EventType, []byte(e.Payload))
	if err != nil {
		return false, fmt.Errorf("insert inbox: %w", err)
	}
	if result.RowsAffected() == 0 {
		r.logger.Infof("[ID %s] idempotent hit: event already in inbox of %s", e.EventID, e.Consumer)
		return false, nil
	}
	return true, nil
}
