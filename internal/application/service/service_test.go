package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/repo"
	"flightsaga/internal/application/repo/memrepo"
	"flightsaga/internal/transport/notifier"
	"flightsaga/internal/transport/producer"
	"flightsaga/pkg/config"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/stream"

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// switchStream имитирует недоступный или зависший брокер
type switchStream struct {
	*stream.Memory
	down atomic.Bool

	// если hold задан, Publish сообщает в entered и ждёт закрытия hold
	hold    chan struct{}
	entered chan struct{}
}

func (s *switchStream) Publish(ctx context.Context, key string, fields map[string]string) (string, error) {
	if s.hold != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.hold
	}
	if s.down.Load() {
		return "", errors.New("broker unavailable")
	}
	return s.Memory.Publish(ctx, key, fields)
}

type recNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (n *recNotifier) Notify(_ context.Context, key string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys = append(n.keys, key)
	return nil
}

func (n *recNotifier) Close() error { return nil }

func (n *recNotifier) Keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.keys...)
}

var _ notifier.Notifier = (*recNotifier)(nil)

type fixedGateway struct {
	approved bool
	err      error
}

func (g fixedGateway) Charge(context.Context, int64, float64) (bool, error) { return g.approved, g.err }

type fixture struct {
	svc      *ServiceImpl
	store    *memrepo.Store
	stream   *switchStream
	notifier *recNotifier
	m        *metrics.Metrics
}

func newFixture(t *testing.T, gateway PaymentGateway) *fixture {
	t.Helper()
	return newFixtureOn(t, gateway, func(s *memrepo.Store) repo.Repo { return s })
}

// newFixtureOn позволяет подменить часть методов хранилища
func newFixtureOn(t *testing.T, gateway PaymentGateway, wrap func(*memrepo.Store) repo.Repo) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	conf := &config.Config{
		Realay: config.RelayConfig{Workers: 1, BatchSize: 10, Lease: time.Minute, PollPeriod: 10 * time.Millisecond, MaxAttempts: 2},
		Saga:   config.Saga{SeatPrice: 100},
	}
	store := memrepo.New(logger)
	st := &switchStream{Memory: stream.NewMemory()}
	m := metrics.New(prometheus.NewRegistry())
	n := &recNotifier{}
	if gateway == nil {
		gateway = StubGateway{}
	}

	r := wrap(store)
	svc := NewService(r, repo.NewTransactions(r, logger), producer.NewProducer(st, "test", logger, 1, m),
		st, gateway, n, logger, conf, m)

	return &fixture{svc: svc, store: store, stream: st, notifier: n, m: m}
}

// brokenRepo отказывает в записи саги и в коммите
type brokenRepo struct {
	*memrepo.Store
	err       error
	commitErr error
}

func (r *brokenRepo) UpdateBookingStatus(context.Context, int64, entity.BookingStatus) error {
	return r.err
}

func (r *brokenRepo) AdjustAvailableSeats(context.Context, int64, int) error { return r.err }

func (r *brokenRepo) CreatePayment(context.Context, *entity.Payment) (int64, error) { return 0, r.err }

func (r *brokenRepo) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.Store.WithinTransaction(ctx, fn); err != nil {
		return err
	}
	return r.commitErr
}

// published разбирает все записи stream в конверты
func (f *fixture) published(t *testing.T) []entity.Event {
	t.Helper()
	var res []entity.Event
	for _, msg := range f.stream.Entries() {
		evt, err := entity.ParseEvent([]byte(msg.Fields[stream.FieldPayload]))
		require.NoError(t, err)
		res = append(res, evt)
	}
	return res
}

func (f *fixture) publishedOf(t *testing.T, eventType string) []entity.Payload {
	t.Helper()
	var res []entity.Payload
	for _, evt := range f.published(t) {
		if evt.Type != eventType {
			continue
		}
		p, err := evt.Decode()
		require.NoError(t, err)
		res = append(res, p)
	}
	return res
}

func incoming(t *testing.T, p entity.Payload) entity.Event {
	t.Helper()
	evt, err := entity.NewEvent(uuid.Must(uuid.NewV4()), p)
	require.NoError(t, err)
	return evt
}

func TestPublishAfterCommit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var id uuid.UUID
	err := f.store.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = f.svc.Publish(ctx, entity.BookingConfirmed{BookingID: 7})
		require.NoError(t, err)
		assert.Zero(t, f.stream.Len(), "nothing is published before commit")
		return nil
	})
	require.NoError(t, err)

	events := f.published(t)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, entity.EventBookingConfirmed, events[0].Type)

	outbox := f.store.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, id, outbox[0].EventID)
	assert.Equal(t, "7", outbox[0].PartitionKey)
	assert.Equal(t, entity.OutboxSent, outbox[0].Status)
}

func TestPublishRolledBackWithTransaction(t *testing.T) {
	f := newFixture(t, nil)

	_ = f.store.WithinTransaction(context.Background(), func(ctx context.Context) error {
		_, err := f.svc.Publish(ctx, entity.BookingFailed{BookingID: 1})
		require.NoError(t, err)
		return errors.New("abort")
	})

	assert.Empty(t, f.store.Outbox())
	assert.Zero(t, f.stream.Len())
}

func TestPublishFailureLeftForRelay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.stream.down.Store(true)

	id, err := f.svc.Publish(ctx, entity.FlightCreationRequested{TotalSeats: 5})
	require.NoError(t, err, "outbox insert succeeded, publish error is not returned")
	assert.Zero(t, f.stream.Len())
	assert.Equal(t, entity.OutboxNew, f.store.Outbox()[0].Status)
	assert.Equal(t, id.String(), f.store.Outbox()[0].PartitionKey)

	// lease с момента вставки ещё держится
	batch, err := f.svc.ReserveRelayBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)

	f.store.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	batch, err = f.svc.ReserveRelayBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// брокер всё ещё лежит: FAILED с бэкоффом
	f.svc.ProcessOne(ctx, 0, batch[0])
	got, err := f.store.GetOutbox(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.OutboxFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)

	f.stream.down.Store(false)
	f.svc.ProcessOne(ctx, 0, *got)
	got, err = f.store.GetOutbox(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.OutboxSent, got.Status)

	events := f.published(t)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Outbox.RelayOperationsTotal.WithLabelValues("sent")))
}

func TestRelayGivesUp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.stream.down.Store(true)

	id, err := f.svc.Publish(ctx, entity.BookingFailed{BookingID: 3})
	require.NoError(t, err)

	e, err := f.store.GetOutbox(ctx, id)
	require.NoError(t, err)
	e.Attempts = 1 // последняя попытка при MaxAttempts=2
	f.svc.ProcessOne(ctx, 0, *e)

	got, err := f.store.GetOutbox(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.OutboxGaveUp, got.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Outbox.RelayOperationsTotal.WithLabelValues("gave_up")))
}

func TestRelayLoopRepublishes(t *testing.T) {
	f := newFixture(t, nil)
	f.stream.down.Store(true)

	_, err := f.svc.Publish(context.Background(), entity.BookingFailed{BookingID: 9})
	require.NoError(t, err)
	f.stream.down.Store(false)
	f.store.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.RelayEventRun(ctx)

	require.Eventually(t, func() bool {
		return f.stream.Len() == 1 && f.store.Outbox()[0].Status == entity.OutboxSent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayWaitsForWorkers(t *testing.T) {
	f := newFixture(t, nil)
	f.stream.down.Store(true)

	_, err := f.svc.Publish(context.Background(), entity.BookingFailed{BookingID: 9})
	require.NoError(t, err)
	f.stream.down.Store(false)
	f.stream.hold = make(chan struct{})
	f.stream.entered = make(chan struct{}, 1)
	f.store.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.svc.RelayEventRun(ctx)
		close(done)
	}()

	select {
	case <-f.stream.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("relay worker did not start publishing")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("relay returned while a worker was still publishing")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.stream.hold)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not return after the worker finished")
	}
}

func TestCreateBookingWritesOutbox(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.CreateBooking(ctx, entity.BookingRequest{FlightID: 4, UserID: "u1", SeatNumber: "12A"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, resp.Status)

	b, err := f.svc.GetBooking(ctx, resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, b.Status)

	reqs := f.publishedOf(t, entity.EventBookingRequested)
	require.Len(t, reqs, 1)
	assert.Equal(t, entity.BookingRequested{BookingID: resp.BookingID, FlightID: 4, SeatNumber: "12A"}, reqs[0])
}

func TestRequestPayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.svc.RequestPayment(ctx, 42)
	assert.ErrorIs(t, err, appers.ErrBookingNotFound)
	assert.Zero(t, f.stream.Len())

	resp, err := f.svc.CreateBooking(ctx, entity.BookingRequest{FlightID: 1, UserID: "u", SeatNumber: "1A"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPayment(ctx, resp.BookingID))

	reqs := f.publishedOf(t, entity.EventBookingRequestedForPayment)
	require.Len(t, reqs, 1)
	assert.Equal(t, entity.BookingRequestedForPayment{BookingID: resp.BookingID, Amount: 100}, reqs[0])
}

func TestFlightCreationRequested(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RequestFlightCreation(ctx, 3)
	require.NoError(t, err)

	evt := f.published(t)[0]
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, evt))

	flights, err := f.svc.ListFlights(ctx)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, 3, flights[0].TotalSeats)
	assert.Equal(t, 3, flights[0].AvailableSeats)

	// другие сервисы событие только отмечают
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, evt))
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServicePayment, evt))
	flights, err = f.svc.ListFlights(ctx)
	require.NoError(t, err)
	assert.Len(t, flights, 1)
}

func TestDuplicateEventSkipsHandler(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	flight, err := f.svc.CreateFlight(ctx, 2)
	require.NoError(t, err)
	evt := incoming(t, entity.BookingRequested{BookingID: 1, FlightID: flight.FlightID, SeatNumber: "1A"})

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, evt))
	assert.ErrorIs(t, f.svc.HandleEvent(ctx, config.ServiceFlight, evt), appers.ErrDuplicateEvent)

	got, err := f.svc.GetFlight(ctx, flight.FlightID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSeats)
	assert.Len(t, f.publishedOf(t, entity.EventSeatReserved), 1)
	assert.Equal(t, 1, f.store.InboxLen(config.ServiceFlight))
}

func TestRepeatedBookingRequestDoesNotDoubleReserve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	flight, err := f.svc.CreateFlight(ctx, 2)
	require.NoError(t, err)
	req := entity.BookingRequested{BookingID: 1, FlightID: flight.FlightID, SeatNumber: "1A"}

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, incoming(t, req)))
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, incoming(t, req)))

	got, err := f.svc.GetFlight(ctx, flight.FlightID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSeats)
	assert.Len(t, f.publishedOf(t, entity.EventSeatReserved), 1)
}

func TestSeatReservationFailsForUnknownOrFullFlight(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight,
		incoming(t, entity.BookingRequested{BookingID: 1, FlightID: 99, SeatNumber: "1A"})))

	flight, err := f.svc.CreateFlight(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight,
		incoming(t, entity.BookingRequested{BookingID: 2, FlightID: flight.FlightID, SeatNumber: "1A"})))
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight,
		incoming(t, entity.BookingRequested{BookingID: 3, FlightID: flight.FlightID, SeatNumber: "1B"})))

	assert.Equal(t, []entity.Payload{
		entity.SeatReservationFailed{BookingID: 1},
		entity.SeatReservationFailed{BookingID: 3},
	}, f.publishedOf(t, entity.EventSeatReservationFailed))

	_, err = f.store.GetReservation(ctx, 3)
	assert.ErrorIs(t, err, appers.ErrReservationNotFound)
}

func TestNoOverbookingUnderConcurrency(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const seats, bookings = 3, 20
	flight, err := f.svc.CreateFlight(ctx, seats)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= bookings; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			evt := incoming(t, entity.BookingRequested{BookingID: id, FlightID: flight.FlightID, SeatNumber: "1A"})
			assert.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, evt))
		}(int64(i))
	}
	wg.Wait()

	got, err := f.svc.GetFlight(ctx, flight.FlightID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSeats)
	assert.Len(t, f.publishedOf(t, entity.EventSeatReserved), seats)
	assert.Len(t, f.publishedOf(t, entity.EventSeatReservationFailed), bookings-seats)
}

func TestCompensationIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	flight, err := f.svc.CreateFlight(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight,
		incoming(t, entity.BookingRequested{BookingID: 5, FlightID: flight.FlightID, SeatNumber: "3C"})))

	// два разных события BookingFailed на одно бронирование
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, incoming(t, entity.BookingFailed{BookingID: 5})))
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, incoming(t, entity.BookingFailed{BookingID: 5})))

	got, err := f.svc.GetFlight(ctx, flight.FlightID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSeats)

	_, err = f.store.GetReservation(ctx, 5)
	assert.ErrorIs(t, err, appers.ErrReservationNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Saga.TransitionsTotal.WithLabelValues(config.ServiceFlight, entity.EventBookingFailed, "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Saga.TransitionsTotal.WithLabelValues(config.ServiceFlight, entity.EventBookingFailed, "stale")))
}

func TestBookingTransitionsAndNotifications(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.CreateBooking(ctx, entity.BookingRequest{FlightID: 1, UserID: "u", SeatNumber: "2B"})
	require.NoError(t, err)
	id := resp.BookingID

	// оплата до резерва места: устаревший переход
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.PaymentProcessed{BookingID: id})))
	b, err := f.svc.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, b.Status)

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.SeatReserved{BookingID: id, FlightID: 1})))
	b, err = f.svc.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSeatReserved, b.Status)
	assert.Equal(t, []entity.Payload{entity.BookingRequestedForPayment{BookingID: id, Amount: 100}},
		f.publishedOf(t, entity.EventBookingRequestedForPayment))
	assert.Empty(t, f.notifier.Keys())

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.PaymentProcessed{BookingID: id})))
	b, err = f.svc.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, b.Status)
	assert.Len(t, f.publishedOf(t, entity.EventBookingConfirmed), 1)
	assert.Equal(t, []string{notifier.KeyBookingConfirmed}, f.notifier.Keys())

	// терминальный статус не меняется
	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.PaymentFailed{BookingID: id})))
	b, err = f.svc.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, b.Status)
	assert.Empty(t, f.publishedOf(t, entity.EventBookingFailed))
}

func TestBookingEventForUnknownBookingIgnored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.SeatReserved{BookingID: 77, FlightID: 1})))
	assert.Zero(t, f.stream.Len())
	assert.Equal(t, 1, f.store.InboxLen(config.ServiceBooking))
}

func TestPaymentFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 8, Amount: 100})))

		p, err := f.svc.GetPayment(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentSuccess, p.Status)
		assert.Equal(t, "100.00", p.Amount)
		assert.Equal(t, []entity.Payload{entity.PaymentProcessed{BookingID: 8}}, f.publishedOf(t, entity.EventPaymentProcessed))
	})

	t.Run("declined", func(t *testing.T) {
		f := newFixture(t, fixedGateway{approved: false})
		require.NoError(t, f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 8, Amount: 100})))

		p, err := f.svc.GetPayment(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentFailure, p.Status)
		assert.Equal(t, []entity.Payload{entity.PaymentFailed{BookingID: 8}}, f.publishedOf(t, entity.EventPaymentFailed))
	})

	t.Run("gateway error rolls back inbox", func(t *testing.T) {
		f := newFixture(t, fixedGateway{err: errors.New("timeout")})
		evt := incoming(t, entity.BookingRequestedForPayment{BookingID: 8, Amount: 100})

		err := f.svc.HandleEvent(ctx, config.ServicePayment, evt)
		require.Error(t, err)
		assert.NotErrorIs(t, err, appers.ErrDuplicateEvent)
		assert.Zero(t, f.store.InboxLen(config.ServicePayment))
		assert.Zero(t, f.store.PaymentsCount(8))

		_, err = f.svc.GetPayment(ctx, 8)
		assert.ErrorIs(t, err, appers.ErrPaymentNotFound)
	})
}

func TestStorageFailuresInHandlersArePaused(t *testing.T) {
	ctx := context.Background()
	connErr := errors.New("connection reset by peer")

	broken := func(err, commitErr error) func(*memrepo.Store) repo.Repo {
		return func(s *memrepo.Store) repo.Repo { return &brokenRepo{Store: s, err: err, commitErr: commitErr} }
	}

	t.Run("booking status update", func(t *testing.T) {
		f := newFixtureOn(t, nil, broken(connErr, nil))
		id, err := f.store.CreateBooking(ctx, &entity.Booking{FlightID: 1, UserID: "u", SeatNumber: "1A", Status: entity.StatusPending})
		require.NoError(t, err)

		err = f.svc.HandleEvent(ctx, config.ServiceBooking, incoming(t, entity.SeatReserved{BookingID: id, FlightID: 1}))
		assert.ErrorIs(t, err, appers.ErrStorage)
		assert.ErrorIs(t, err, connErr)
		assert.Zero(t, f.store.InboxLen(config.ServiceBooking))
	})

	t.Run("seat adjustment", func(t *testing.T) {
		f := newFixtureOn(t, nil, broken(connErr, nil))
		flight, err := f.store.CreateFlight(ctx, 2)
		require.NoError(t, err)

		err = f.svc.HandleEvent(ctx, config.ServiceFlight,
			incoming(t, entity.BookingRequested{BookingID: 1, FlightID: flight.FlightID, SeatNumber: "1A"}))
		assert.ErrorIs(t, err, appers.ErrStorage)
		assert.Zero(t, f.store.InboxLen(config.ServiceFlight))
	})

	t.Run("payment insert", func(t *testing.T) {
		f := newFixtureOn(t, nil, broken(connErr, nil))
		err := f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 3, Amount: 100}))
		assert.ErrorIs(t, err, appers.ErrStorage)
		assert.Zero(t, f.store.InboxLen(config.ServicePayment))
	})

	t.Run("commit", func(t *testing.T) {
		f := newFixtureOn(t, nil, broken(nil, connErr))
		err := f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 3, Amount: 100}))
		assert.ErrorIs(t, err, appers.ErrStorage)
		assert.ErrorIs(t, err, connErr)
	})

	t.Run("gateway error is not a storage failure", func(t *testing.T) {
		f := newFixtureOn(t, fixedGateway{err: connErr}, broken(nil, nil))
		err := f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 3, Amount: 100}))
		assert.ErrorIs(t, err, appers.ErrGateway)
		assert.NotErrorIs(t, err, appers.ErrStorage)
	})

	t.Run("duplicate stays duplicate", func(t *testing.T) {
		f := newFixtureOn(t, nil, broken(nil, nil))
		evt := incoming(t, entity.BookingFailed{BookingID: 9})
		require.NoError(t, f.svc.HandleEvent(ctx, config.ServiceFlight, evt))

		err := f.svc.HandleEvent(ctx, config.ServiceFlight, evt)
		assert.ErrorIs(t, err, appers.ErrDuplicateEvent)
		assert.NotErrorIs(t, err, appers.ErrStorage)
	})
}

func TestPaymentAmountIsNormalised(t *testing.T) {
	ctx := context.Background()

	t.Run("rounded to cents", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 4, Amount: 19.999})))

		p, err := f.svc.GetPayment(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, "20.00", p.Amount)
	})

	t.Run("overflow is poison and not charged", func(t *testing.T) {
		gw := &countingGateway{}
		f := newFixture(t, gw)
		err := f.svc.HandleEvent(ctx, config.ServicePayment,
			incoming(t, entity.BookingRequestedForPayment{BookingID: 4, Amount: 1e17}))
		assert.ErrorIs(t, err, appers.ErrPoisonMessage)
		assert.ErrorIs(t, err, appers.ErrPrecision)
		assert.Zero(t, gw.calls.Load())
		assert.Zero(t, f.store.PaymentsCount(4))
	})
}

type countingGateway struct {
	calls atomic.Int32
}

func (g *countingGateway) Charge(context.Context, int64, float64) (bool, error) {
	g.calls.Add(1)
	return true, nil
}

func TestHandleEventPoison(t *testing.T) {
	f := newFixture(t, nil)

	evt := entity.Event{ID: uuid.Must(uuid.NewV4()), Type: entity.EventSeatReserved, Payload: []byte(`{"booking_id":"x"}`)}
	err := f.svc.HandleEvent(context.Background(), config.ServiceBooking, evt)
	assert.ErrorIs(t, err, appers.ErrPoisonMessage)
	assert.Zero(t, f.store.InboxLen(config.ServiceBooking))
}

func TestHandleEventUnknownService(t *testing.T) {
	f := newFixture(t, nil)
	err := f.svc.HandleEvent(context.Background(), "loyalty", incoming(t, entity.BookingFailed{BookingID: 1}))
	assert.Error(t, err)
}

func TestMonitorBacklog(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.stream.EnsureGroup(ctx, "BookingService_group"))
	_, err := f.svc.Publish(ctx, entity.BookingFailed{BookingID: 1})
	require.NoError(t, err)
	msg, err := f.stream.Read(ctx, "BookingService_group", "BookingService", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)

	f.svc.MonitorBacklog(ctx, []string{"BookingService_group", "FlightService_group"})

	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Stream.ConsumerPending.WithLabelValues("BookingService_group")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Outbox.Entries.WithLabelValues(string(entity.OutboxSent))))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.Outbox.Entries.WithLabelValues(string(entity.OutboxNew))))
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)

	dbOK, streamOK, err := f.svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, dbOK)
	assert.True(t, streamOK)

	require.NoError(t, f.stream.Close())
	dbOK, streamOK, err = f.svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, dbOK)
	assert.False(t, streamOK)
}
