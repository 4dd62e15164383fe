package entity

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type OutboxStatus string

const (
	OutboxNew    OutboxStatus = "NEW"
	OutboxSent   OutboxStatus = "SENT"
	OutboxFailed OutboxStatus = "FAILED"
	OutboxGaveUp OutboxStatus = "GAVE_UP"
)

// OutboxEntry запись о намерении опубликовать событие. Не удаляется.
type OutboxEntry struct {
	EventID       uuid.UUID       `db:"event_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`       // JSON конверт Event
	PartitionKey  string          `db:"partition_key"` // booking_id или event_id
	Status        OutboxStatus    `db:"status"`        // NEW | SENT | FAILED | GAVE_UP
	Attempts      int             `db:"attempts"`
	NextAttemptAt time.Time       `db:"next_attempt_at"`
	InsertedAt    time.Time       `db:"inserted_at"`
}

// InboxEntry маркер обработанного события; одна строка на (event_id, consumer).
type InboxEntry struct {
	EventID    uuid.UUID       `db:"event_id"`
	Consumer   string          `db:"consumer"` // сервис-получатель
	EventType  string          `db:"event_type"`
	Payload    json.RawMessage `db:"payload"`
	InsertedAt time.Time       `db:"inserted_at"`
}
