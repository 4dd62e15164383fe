package db

import (
	"context"
	"fmt"

	"flightsaga/pkg/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close()
}

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, conf config.Postgres) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(conf.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if conf.MaxConnections <= 0 {
		poolCfg.MaxConns = 5
	} else {
		poolCfg.MaxConns = conf.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	// Миграции через database/sql на базе pgx stdlib.
	sqlDB := stdlib.OpenDB(*poolCfg.ConnConfig)
	defer sqlDB.Close()

	dir := conf.MigrationsDir
	if dir == "" {
		dir = "resources/migrations"
	}
	if err := goose.SetDialect("postgres"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, dir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

// ===== Транзакции через context =====

type txKey struct{}

func (p *Postgres) InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (p *Postgres) ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// ===== Универсальные врапперы: tx из контекста, если он есть =====

func (p *Postgres) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.Exec(ctx, query, args...)
	}
	return p.Pool.Exec(ctx, query, args...)
}

func (p *Postgres) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.Query(ctx, query, args...)
	}
	return p.Pool.Query(ctx, query, args...)
}

func (p *Postgres) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.QueryRow(ctx, query, args...)
	}
	return p.Pool.QueryRow(ctx, query, args...)
}

// ===== Обёртка транзакции =====
// Коммит/роллбэк управляется единственным defer с именованным возвратом err.
// Вложенный вызов присоединяется к внешней транзакции.
// Хуки AfterCommit выполняются только после успешного коммита.
func (p *Postgres) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	if p.ExtractTx(ctx) != nil {
		return tFunc(ctx)
	}

	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	txCtx, hooks := WithCommitHooks(p.InjectTx(ctx, tx))
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if err = tx.Commit(ctx); err == nil {
			hooks.Run(ctx)
		}
	}()

	// передаём вниз ctx с tx; все p.Exec/Query/QueryRow будут идти через этот tx
	err = tFunc(txCtx)
	return
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
