package service

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/repo"
	"flightsaga/internal/application/saga"
	"flightsaga/internal/transport/notifier"
	"flightsaga/internal/transport/producer"
	"flightsaga/pkg/config"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/stream"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// Booking
	CreateBooking(ctx context.Context, req entity.BookingRequest) (*entity.BookingCreatedResponse, error)
	GetBooking(ctx context.Context, id int64) (*entity.Booking, error)
	ListBookings(ctx context.Context) ([]*entity.Booking, error)
	RequestFlightCreation(ctx context.Context, totalSeats int) (uuid.UUID, error)
	RequestPayment(ctx context.Context, bookingID int64) error

	// Flight
	CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error)
	GetFlight(ctx context.Context, id int64) (*entity.Flight, error)
	ListFlights(ctx context.Context) ([]*entity.Flight, error)

	// Payment
	GetPayment(ctx context.Context, bookingID int64) (*entity.Payment, error)

	// Publish пишет событие в outbox и отправляет его в stream после коммита
	Publish(ctx context.Context, p entity.Payload) (uuid.UUID, error)
	// HandleEvent обрабатывает входящее событие от имени сервиса: inbox + реакция саги
	HandleEvent(ctx context.Context, service string, evt entity.Event) error

	RelayEventRun(ctx context.Context)
	MonitorBacklog(ctx context.Context, groups []string)

	HealthCheck(ctx context.Context) (dbHealthy bool, streamHealthy bool, err error)
}

type ServiceImpl struct {
	repo         repo.Repo
	transactions repo.Transactions
	producer     producer.Producer
	stream       stream.Stream
	gateway      PaymentGateway
	notifier     notifier.Notifier
	logger       *zap.SugaredLogger
	cfg          *config.RelayConfig
	seatPrice    float64
	m            *metrics.Metrics
}

func NewService(
	repo repo.Repo,
	transactions repo.Transactions,
	producer producer.Producer,
	st stream.Stream,
	gateway PaymentGateway,
	notifier notifier.Notifier,
	logger *zap.SugaredLogger,
	conf *config.Config,
	m *metrics.Metrics,
) *ServiceImpl {
	return &ServiceImpl{
		repo:         repo,
		transactions: transactions,
		producer:     producer,
		stream:       st,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger,
		cfg:          &conf.Realay,
		seatPrice:    conf.Saga.SeatPrice,
		m:            m,
	}
}

// HealthCheck проверяет доступность БД и stream
func (s *ServiceImpl) HealthCheck(ctx context.Context) (dbHealthy bool, streamHealthy bool, err error) {
	dbErr := s.repo.HealthCheck(ctx)
	dbHealthy = dbErr == nil

	streamErr := s.producer.HealthCheck(ctx)
	streamHealthy = streamErr == nil

	// Возвращаем ошибку только если обе проверки провалились
	if !dbHealthy && !streamHealthy {
		return dbHealthy, streamHealthy, fmt.Errorf("database: %v, stream: %v", dbErr, streamErr)
	}

	return dbHealthy, streamHealthy, nil
}

// MonitorBacklog выставляет gauge по pending записям групп и по статусам outbox
func (s *ServiceImpl) MonitorBacklog(ctx context.Context, groups []string) {
	for _, g := range groups {
		pending, err := s.stream.Pending(ctx, g)
		if errors.Is(err, stream.ErrNoGroup) {
			// consumer ещё не стартовал
			continue
		}
		if err != nil {
			s.logger.Errorf("[group %s] pending check failed: %v", g, err)
			continue
		}
		if s.m != nil {
			s.m.Stream.ConsumerPending.WithLabelValues(g).Set(float64(len(pending)))
		}
		if len(pending) > 0 {
			oldest := pending[0]
			for _, p := range pending[1:] {
				if p.DeliveredAt.Before(oldest.DeliveredAt) {
					oldest = p
				}
			}
			s.logger.Warnf("[group %s] %d unacked entries, oldest %s delivered %d times to %s",
				g, len(pending), oldest.ID, oldest.Deliveries, oldest.Consumer)
		}
	}

	counts, err := s.repo.CountOutboxByStatus(ctx)
	if err != nil {
		s.logger.Errorf("outbox status count failed: %v", err)
		return
	}
	for _, st := range []entity.OutboxStatus{entity.OutboxNew, entity.OutboxSent, entity.OutboxFailed, entity.OutboxGaveUp} {
		if s.m != nil {
			s.m.Outbox.Entries.WithLabelValues(string(st)).Set(float64(counts[st]))
		}
	}
	if n := counts[entity.OutboxGaveUp]; n > 0 {
		s.logger.Warnf("%d outbox entries gave up", n)
	}
}

func (s *ServiceImpl) observe(service, eventType string, outcome saga.Outcome) {
	if s.m == nil {
		return
	}
	s.m.Saga.TransitionsTotal.WithLabelValues(service, eventType, string(outcome)).Inc()
}
