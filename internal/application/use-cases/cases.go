package use_cases

import (
	"context"
	"strings"

	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/service"
	"flightsaga/pkg/config"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type UseCaser interface {
	CreateBooking(ctx context.Context, req entity.BookingRequest) (*entity.BookingCreatedResponse, error)
	GetBooking(ctx context.Context, id int64) (*entity.Booking, error)
	ListBookings(ctx context.Context) ([]*entity.Booking, error)
	RequestFlightCreation(ctx context.Context, req entity.FlightCreateRequest) (uuid.UUID, error)
	RequestPayment(ctx context.Context, bookingID int64) (*entity.PaymentRequestedResponse, error)

	CreateFlight(ctx context.Context, req entity.FlightCreateRequest) (*entity.Flight, error)
	GetFlight(ctx context.Context, id int64) (*entity.Flight, error)
	ListFlights(ctx context.Context) ([]*entity.Flight, error)

	GetPayment(ctx context.Context, bookingID int64) (*entity.Payment, error)

	ConsumeEvent(ctx context.Context, serviceName string, evt entity.Event) error
	RunRelay(ctx context.Context)
	MonitorBacklog(ctx context.Context)

	HealthCheck(ctx context.Context) (dbHealthy bool, streamHealthy bool, err error)
}

type UseCase struct {
	service service.Service
	logger  *zap.SugaredLogger
	conf    *config.Config
}

func NewUseCase(service service.Service, logger *zap.SugaredLogger, conf *config.Config) *UseCase {
	return &UseCase{
		service: service,
		logger:  logger,
		conf:    conf,
	}
}

// GroupName consumer group сервиса
func GroupName(serviceName string) string {
	return ConsumerName(serviceName) + "_group"
}

// ConsumerName booking -> BookingService
func ConsumerName(serviceName string) string {
	if serviceName == "" {
		return "Service"
	}
	return strings.ToUpper(serviceName[:1]) + serviceName[1:] + "Service"
}

func (u *UseCase) HealthCheck(ctx context.Context) (dbHealthy bool, streamHealthy bool, err error) {
	return u.service.HealthCheck(ctx)
}

func (u *UseCase) CreateBooking(ctx context.Context, req entity.BookingRequest) (*entity.BookingCreatedResponse, error) {
	u.logger.Debugf("[flight: %d] CreateBooking started", req.FlightID)
	return u.service.CreateBooking(ctx, req)
}

func (u *UseCase) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	return u.service.GetBooking(ctx, id)
}

func (u *UseCase) ListBookings(ctx context.Context) ([]*entity.Booking, error) {
	return u.service.ListBookings(ctx)
}

func (u *UseCase) RequestFlightCreation(ctx context.Context, req entity.FlightCreateRequest) (uuid.UUID, error) {
	u.logger.Debugf("[seats: %d] RequestFlightCreation started", req.TotalSeats)
	return u.service.RequestFlightCreation(ctx, req.TotalSeats)
}

func (u *UseCase) RequestPayment(ctx context.Context, bookingID int64) (*entity.PaymentRequestedResponse, error) {
	u.logger.Debugf("[booking: %d] RequestPayment started", bookingID)
	if err := u.service.RequestPayment(ctx, bookingID); err != nil {
		return nil, err
	}
	return &entity.PaymentRequestedResponse{BookingID: bookingID, Status: "PAYMENT_REQUESTED"}, nil
}

func (u *UseCase) CreateFlight(ctx context.Context, req entity.FlightCreateRequest) (*entity.Flight, error) {
	u.logger.Debugf("[seats: %d] CreateFlight started", req.TotalSeats)
	return u.service.CreateFlight(ctx, req.TotalSeats)
}

func (u *UseCase) GetFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	return u.service.GetFlight(ctx, id)
}

func (u *UseCase) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	return u.service.ListFlights(ctx)
}

func (u *UseCase) GetPayment(ctx context.Context, bookingID int64) (*entity.Payment, error) {
	return u.service.GetPayment(ctx, bookingID)
}

func (u *UseCase) ConsumeEvent(ctx context.Context, serviceName string, evt entity.Event) error {
	u.logger.Debugf("[ID %s] %s consumes %s", evt.ID, serviceName, evt.Type)
	return u.service.HandleEvent(ctx, serviceName, evt)
}

func (u *UseCase) RunRelay(ctx context.Context) {
	u.logger.Debug("relay started")
	u.service.RelayEventRun(ctx)
}

// MonitorBacklog по группам сервисов, запущенных в процессе
func (u *UseCase) MonitorBacklog(ctx context.Context) {
	services := u.conf.Service.Services()
	groups := make([]string, 0, len(services))
	for _, s := range services {
		groups = append(groups, GroupName(s))
	}
	u.service.MonitorBacklog(ctx, groups)
}
