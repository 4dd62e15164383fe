package use_cases

import (
	"context"
	"testing"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/pkg/config"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type serviceMock struct {
	mock.Mock
}

func (m *serviceMock) CreateBooking(ctx context.Context, req entity.BookingRequest) (*entity.BookingCreatedResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*entity.BookingCreatedResponse)
	return resp, args.Error(1)
}

func (m *serviceMock) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*entity.Booking)
	return b, args.Error(1)
}

func (m *serviceMock) ListBookings(ctx context.Context) ([]*entity.Booking, error) {
	args := m.Called(ctx)
	l, _ := args.Get(0).([]*entity.Booking)
	return l, args.Error(1)
}

func (m *serviceMock) RequestFlightCreation(ctx context.Context, totalSeats int) (uuid.UUID, error) {
	args := m.Called(ctx, totalSeats)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *serviceMock) RequestPayment(ctx context.Context, bookingID int64) error {
	return m.Called(ctx, bookingID).Error(0)
}

func (m *serviceMock) CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error) {
	args := m.Called(ctx, totalSeats)
	f, _ := args.Get(0).(*entity.Flight)
	return f, args.Error(1)
}

func (m *serviceMock) GetFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*entity.Flight)
	return f, args.Error(1)
}

func (m *serviceMock) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	args := m.Called(ctx)
	l, _ := args.Get(0).([]*entity.Flight)
	return l, args.Error(1)
}

func (m *serviceMock) GetPayment(ctx context.Context, bookingID int64) (*entity.Payment, error) {
	args := m.Called(ctx, bookingID)
	p, _ := args.Get(0).(*entity.Payment)
	return p, args.Error(1)
}

func (m *serviceMock) Publish(ctx context.Context, p entity.Payload) (uuid.UUID, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *serviceMock) HandleEvent(ctx context.Context, service string, evt entity.Event) error {
	return m.Called(ctx, service, evt).Error(0)
}

func (m *serviceMock) RelayEventRun(ctx context.Context) { m.Called(ctx) }

func (m *serviceMock) MonitorBacklog(ctx context.Context, groups []string) { m.Called(ctx, groups) }

func (m *serviceMock) HealthCheck(ctx context.Context) (bool, bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "BookingService", ConsumerName(config.ServiceBooking))
	assert.Equal(t, "FlightService_group", GroupName(config.ServiceFlight))
	assert.Equal(t, "PaymentService_group", GroupName(config.ServicePayment))
}

func TestRequestPayment(t *testing.T) {
	svc := &serviceMock{}
	uc := NewUseCase(svc, zaptest.NewLogger(t).Sugar(), &config.Config{})
	ctx := context.Background()

	svc.On("RequestPayment", ctx, int64(3)).Return(nil).Once()
	svc.On("RequestPayment", ctx, int64(4)).Return(appers.ErrBookingNotFound).Once()

	resp, err := uc.RequestPayment(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, &entity.PaymentRequestedResponse{BookingID: 3, Status: "PAYMENT_REQUESTED"}, resp)

	_, err = uc.RequestPayment(ctx, 4)
	assert.ErrorIs(t, err, appers.ErrBookingNotFound)
	svc.AssertExpectations(t)
}

func TestMonitorBacklogUsesConfiguredServices(t *testing.T) {
	svc := &serviceMock{}
	ctx := context.Background()

	uc := NewUseCase(svc, zaptest.NewLogger(t).Sugar(), &config.Config{Service: config.Service{Name: config.ServiceAll}})
	svc.On("MonitorBacklog", ctx, []string{"BookingService_group", "FlightService_group", "PaymentService_group"}).Once()
	uc.MonitorBacklog(ctx)

	uc = NewUseCase(svc, zaptest.NewLogger(t).Sugar(), &config.Config{Service: config.Service{Name: "Payment"}})
	svc.On("MonitorBacklog", ctx, []string{"PaymentService_group"}).Once()
	uc.MonitorBacklog(ctx)

	svc.AssertExpectations(t)
}

func TestConsumeEventDelegates(t *testing.T) {
	svc := &serviceMock{}
	uc := NewUseCase(svc, zaptest.NewLogger(t).Sugar(), &config.Config{})
	ctx := context.Background()

	evt, err := entity.NewEvent(uuid.Must(uuid.NewV4()), entity.BookingFailed{BookingID: 1})
	require.NoError(t, err)

	svc.On("HandleEvent", ctx, config.ServiceFlight, evt).Return(appers.ErrDuplicateEvent).Once()
	assert.ErrorIs(t, uc.ConsumeEvent(ctx, config.ServiceFlight, evt), appers.ErrDuplicateEvent)
	svc.AssertExpectations(t)
}
