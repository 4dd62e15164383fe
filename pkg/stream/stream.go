// Package stream describes the shared event stream the services talk through:
// an append-only log read by named consumer groups, where every delivered entry
// stays pending for its group until it is acknowledged.
package stream

import (
	"context"
	"errors"
	"time"
)

// Поля записи в stream
const (
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldPayload   = "payload"
)

var (
	ErrGroupExists = errors.New("consumer group already exists")
	ErrNoGroup     = errors.New("consumer group does not exist")
	ErrClosed      = errors.New("stream is closed")
)

// Message is one stream entry as delivered to a consumer group.
type Message struct {
	ID         string
	Fields     map[string]string
	Deliveries int
}

// Field returns the value and whether the field is present at all.
func (m Message) Field(name string) (string, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// PendingEntry is a delivered but not yet acknowledged entry.
type PendingEntry struct {
	ID          string
	Consumer    string
	Deliveries  int
	DeliveredAt time.Time
}

type Stream interface {
	// EnsureGroup creates the group positioned at the earliest entry.
	// Returns ErrGroupExists when the group is already there.
	EnsureGroup(ctx context.Context, group string) error
	// Publish appends an entry. key selects the partition where the driver has any.
	Publish(ctx context.Context, key string, fields map[string]string) (string, error)
	// Read waits up to block for one new entry for the group.
	// Returns nil, nil when nothing arrived in time.
	Read(ctx context.Context, group, consumer string, block time.Duration) (*Message, error)
	Ack(ctx context.Context, group string, ids ...string) error
	Pending(ctx context.Context, group string) ([]PendingEntry, error)
	// Claim transfers up to count pending entries idle for at least minIdle to consumer
	// and returns them for another delivery.
	Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]Message, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
