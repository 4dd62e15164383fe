package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process stream with consumer-group and pending-entry semantics.
// It backs single-process runs and tests.
type Memory struct {
	mu      sync.Mutex
	entries []Message
	groups  map[string]*memGroup
	signal  chan struct{}
	closed  bool
	now     func() time.Time
}

type memGroup struct {
	next    int
	pending map[string]*memPending
}

type memPending struct {
	idx         int
	consumer    string
	deliveries  int
	deliveredAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		groups: make(map[string]*memGroup),
		signal: make(chan struct{}),
		now:    time.Now,
	}
}

func (m *Memory) EnsureGroup(_ context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.groups[group]; ok {
		return ErrGroupExists
	}
	m.groups[group] = &memGroup{pending: make(map[string]*memPending)}
	return nil
}

func (m *Memory) Publish(_ context.Context, _ string, fields map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	id := fmt.Sprintf("%d-0", len(m.entries)+1)
	m.entries = append(m.entries, Message{ID: id, Fields: cp})

	// будим всех ждущих Read
	close(m.signal)
	m.signal = make(chan struct{})

	return id, nil
}

func (m *Memory) Read(ctx context.Context, group, consumer string, block time.Duration) (*Message, error) {
	timer := time.NewTimer(block)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		g, ok := m.groups[group]
		if !ok {
			m.mu.Unlock()
			return nil, ErrNoGroup
		}
		if g.next < len(m.entries) {
			idx := g.next
			g.next++
			msg := m.deliver(g, idx, consumer)
			m.mu.Unlock()
			return &msg, nil
		}
		wait := m.signal
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wait:
		}
	}
}

// deliver вызывается под m.mu
func (m *Memory) deliver(g *memGroup, idx int, consumer string) Message {
	e := m.entries[idx]
	p, ok := g.pending[e.ID]
	if !ok {
		p = &memPending{idx: idx}
		g.pending[e.ID] = p
	}
	p.consumer = consumer
	p.deliveries++
	p.deliveredAt = m.now()

	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return Message{ID: e.ID, Fields: fields, Deliveries: p.deliveries}
}

func (m *Memory) Ack(_ context.Context, group string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[group]
	if !ok {
		return ErrNoGroup
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

func (m *Memory) Pending(_ context.Context, group string) ([]PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[group]
	if !ok {
		return nil, ErrNoGroup
	}
	res := make([]PendingEntry, 0, len(g.pending))
	for id, p := range g.pending {
		res = append(res, PendingEntry{ID: id, Consumer: p.consumer, Deliveries: p.deliveries, DeliveredAt: p.deliveredAt})
	}
	sort.Slice(res, func(i, j int) bool { return g.pending[res[i].ID].idx < g.pending[res[j].ID].idx })
	return res, nil
}

func (m *Memory) Claim(_ context.Context, group, consumer string, minIdle time.Duration, count int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[group]
	if !ok {
		return nil, ErrNoGroup
	}

	now := m.now()
	idle := make([]int, 0)
	for _, p := range g.pending {
		if now.Sub(p.deliveredAt) >= minIdle {
			idle = append(idle, p.idx)
		}
	}
	sort.Ints(idle)
	if count > 0 && len(idle) > count {
		idle = idle[:count]
	}

	res := make([]Message, 0, len(idle))
	for _, idx := range idle {
		res = append(res, m.deliver(g, idx, consumer))
	}
	return res, nil
}

// Len returns the number of entries ever appended.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns a copy of the log.
func (m *Memory) Entries() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Message, len(m.entries))
	copy(res, m.entries)
	return res
}

func (m *Memory) HealthCheck(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.signal)
	}
	return nil
}
