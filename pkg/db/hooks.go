package db

import (
	"context"
	"sync"
)

type hooksKey struct{}

// CommitHooks копит действия, которые нельзя выполнять до коммита
// (например, публикацию в stream записи outbox из той же транзакции).
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

func (h *CommitHooks) add(fn func(ctx context.Context)) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run выполняет хуки в порядке регистрации. ctx: контекст вне транзакции.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// AfterCommit откладывает fn до коммита текущей транзакции.
// Вне транзакции fn выполняется сразу.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if h, ok := ctx.Value(hooksKey{}).(*CommitHooks); ok {
		h.add(fn)
		return
	}
	fn(ctx)
}
