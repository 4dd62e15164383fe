package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flightsaga/internal/application/entity"
	"flightsaga/pkg/db"
	"flightsaga/pkg/metrics"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Repo контракт хранилища; реализации: RepoImpl (postgres) и memrepo.
type Repo interface {
	// WithinTransaction присоединяется к транзакции из ctx, если она есть.
	// Хуки db.AfterCommit выполняются только после коммита.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// InsertInbox возвращает false, если событие уже было у этого consumer.
	InsertInbox(ctx context.Context, e *entity.InboxEntry) (bool, error)

	InsertOutbox(ctx context.Context, e *entity.OutboxEntry, lease time.Duration) error
	GetOutbox(ctx context.Context, eventID uuid.UUID) (*entity.OutboxEntry, error)
	ReserveOutboxBatch(ctx context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEntry, error)
	MarkSent(ctx context.Context, eventID uuid.UUID) error
	MarkFailedWithBackoff(ctx context.Context, eventID uuid.UUID, nextAttemptAt time.Time) error
	MarkGaveUp(ctx context.Context, eventID uuid.UUID) error
	CountOutboxByStatus(ctx context.Context) (map[entity.OutboxStatus]int, error)

	CreateBooking(ctx context.Context, b *entity.Booking) (int64, error)
	GetBooking(ctx context.Context, id int64) (*entity.Booking, error)
	ListBookings(ctx context.Context) ([]*entity.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status entity.BookingStatus) error

	CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error)
	GetFlight(ctx context.Context, id int64) (*entity.Flight, error)
	// LockFlight блокирует строку рейса до конца транзакции.
	LockFlight(ctx context.Context, id int64) (*entity.Flight, error)
	ListFlights(ctx context.Context) ([]*entity.Flight, error)
	AdjustAvailableSeats(ctx context.Context, id int64, delta int) error

	CreateReservation(ctx context.Context, r *entity.Reservation) error
	GetReservation(ctx context.Context, bookingID int64) (*entity.Reservation, error)
	DeleteReservation(ctx context.Context, bookingID int64) error

	CreatePayment(ctx context.Context, p *entity.Payment) (int64, error)
	GetPaymentByBooking(ctx context.Context, bookingID int64) (*entity.Payment, error)

	HealthCheck(ctx context.Context) error
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
	m      *metrics.Metrics
}

func NewRepo(db db.DB, logger *zap.SugaredLogger, m *metrics.Metrics) *RepoImpl {
	return &RepoImpl{db: db, logger: logger, m: m}
}

func (r *RepoImpl) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTransaction(ctx, fn)
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	// Проверяем доступность БД через простой запрос
	var result int
	err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// ===== инструментированные обёртки =====

func (r *RepoImpl) exec(ctx context.Context, name, query string, args ...any) (pgconn.CommandTag, error) {
	done := r.track(query, name)
	tag, err := r.db.Exec(ctx, query, args...)
	done(err)
	return tag, err
}

func (r *RepoImpl) query(ctx context.Context, name, query string, args ...any) (pgx.Rows, error) {
	done := r.track(query, name)
	rows, err := r.db.Query(ctx, query, args...)
	done(err)
	return rows, err
}

// queryRow сканирует сразу, чтобы метрика учла ошибку Scan (в т.ч. ErrNoRows)
func (r *RepoImpl) queryRow(ctx context.Context, name, query string, args []any, dest ...any) error {
	done := r.track(query, name)
	err := r.db.QueryRow(ctx, query, args...).Scan(dest...)
	done(err)
	return err
}

func (r *RepoImpl) track(query, name string) func(err error) {
	if r.m == nil {
		return func(error) {}
	}
	op := sqlOp(query)
	start := time.Now()
	r.m.Repo.InFlight.WithLabelValues(op, name).Inc()

	return func(err error) {
		r.m.Repo.InFlight.WithLabelValues(op, name).Dec()
		result, kind := "ok", "none"
		switch {
		case err == nil:
		case errors.Is(err, pgx.ErrNoRows):
			kind = "no_rows"
		case isDuplicateKeyError(err):
			result, kind = "error", "duplicate"
		default:
			result, kind = "error", "other"
		}
		r.m.Repo.RequestsTotal.WithLabelValues(op, name, result, kind).Inc()
		r.m.Repo.DurationSeconds.WithLabelValues(op, name, result).Observe(time.Since(start).Seconds())
	}
}

func sqlOp(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete":
		return op
	case "with":
		return "cte"
	default:
		return "other"
	}
}

// isDuplicateKeyError проверяет, является ли ошибка ошибкой дубликата ключа (SQLSTATE 23505)
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
