// Package memrepo keeps the saga tables in process memory. Transactions are
// serialised by one mutex and rolled back from a snapshot, so the row-lock
// discipline of the postgres store holds trivially.
//
// The mutex is held for the whole transaction, including the payment gateway
// call made by the payment handler and its retries. While a charge is in
// flight every other service in the process waits on the store. Run with the
// postgres driver when the gateway is slow.
package memrepo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"
	"flightsaga/pkg/db"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type txKey struct{}

type inboxKey struct {
	eventID  uuid.UUID
	consumer string
}

type state struct {
	bookings     map[int64]entity.Booking
	flights      map[int64]entity.Flight
	reservations map[int64]entity.Reservation
	payments     []entity.Payment
	outbox       map[uuid.UUID]entity.OutboxEntry
	outboxOrder  []uuid.UUID
	inbox        map[inboxKey]entity.InboxEntry

	bookingSeq, flightSeq, paymentSeq int64
}

func newState() state {
	return state{
		bookings:     make(map[int64]entity.Booking),
		flights:      make(map[int64]entity.Flight),
		reservations: make(map[int64]entity.Reservation),
		outbox:       make(map[uuid.UUID]entity.OutboxEntry),
		inbox:        make(map[inboxKey]entity.InboxEntry),
	}
}

func (s state) clone() state {
	c := s
	c.bookings = make(map[int64]entity.Booking, len(s.bookings))
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	c.flights = make(map[int64]entity.Flight, len(s.flights))
	for k, v := range s.flights {
		c.flights[k] = v
	}
	c.reservations = make(map[int64]entity.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	c.payments = append([]entity.Payment(nil), s.payments...)
	c.outbox = make(map[uuid.UUID]entity.OutboxEntry, len(s.outbox))
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	c.outboxOrder = append([]uuid.UUID(nil), s.outboxOrder...)
	c.inbox = make(map[inboxKey]entity.InboxEntry, len(s.inbox))
	for k, v := range s.inbox {
		c.inbox[k] = v
	}
	return c
}

type Store struct {
	mu     sync.Mutex
	st     state
	logger *zap.SugaredLogger

	// Now подменяется в тестах релея
	Now func() time.Time
}

func New(logger *zap.SugaredLogger) *Store {
	return &Store{st: newState(), logger: logger, Now: time.Now}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	txCtx, hooks := db.WithCommitHooks(context.WithValue(ctx, txKey{}, true))

	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		snapshot := s.st.clone()
		if err = fn(txCtx); err != nil {
			s.st = snapshot
		}
	}()

	if err == nil {
		hooks.Run(ctx)
	}
	return err
}

// run выполняет одиночную операцию: внутри транзакции блокировка уже взята
func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(&s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

func (s *Store) HealthCheck(context.Context) error { return nil }

// ===== inbox / outbox =====

func (s *Store) InsertInbox(ctx context.Context, e *entity.InboxEntry) (bool, error) {
	inserted := false
	err := s.run(ctx, func(st *state) error {
		key := inboxKey{eventID: e.EventID, consumer: e.Consumer}
		if _, ok := st.inbox[key]; ok {
			return nil
		}
		cp := *e
		cp.InsertedAt = s.Now()
		st.inbox[key] = cp
		inserted = true
		return nil
	})
	return inserted, err
}

// InboxLen число маркеров inbox у consumer
func (s *Store) InboxLen(consumer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.st.inbox {
		if k.consumer == consumer {
			n++
		}
	}
	return n
}

func (s *Store) InsertOutbox(ctx context.Context, e *entity.OutboxEntry, lease time.Duration) error {
	return s.run(ctx, func(st *state) error {
		if _, ok := st.outbox[e.EventID]; ok {
			return appers.ErrDuplicateEvent
		}
		now := s.Now()
		cp := *e
		if cp.Status == "" {
			cp.Status = entity.OutboxNew
		}
		cp.InsertedAt = now
		cp.NextAttemptAt = now.Add(lease)
		st.outbox[e.EventID] = cp
		st.outboxOrder = append(st.outboxOrder, e.EventID)
		return nil
	})
}

func (s *Store) GetOutbox(ctx context.Context, eventID uuid.UUID) (*entity.OutboxEntry, error) {
	var res *entity.OutboxEntry
	err := s.run(ctx, func(st *state) error {
		e, ok := st.outbox[eventID]
		if !ok {
			return appers.ErrOutboxMissing
		}
		res = &e
		return nil
	})
	return res, err
}

// Outbox все записи в порядке вставки
func (s *Store) Outbox() []entity.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]entity.OutboxEntry, 0, len(s.st.outboxOrder))
	for _, id := range s.st.outboxOrder {
		res = append(res, s.st.outbox[id])
	}
	return res
}

func (s *Store) ReserveOutboxBatch(ctx context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEntry, error) {
	var res []entity.OutboxEntry
	err := s.run(ctx, func(st *state) error {
		now := s.Now()
		for _, id := range st.outboxOrder {
			e := st.outbox[id]
			if e.Status != entity.OutboxNew && e.Status != entity.OutboxFailed {
				continue
			}
			if e.NextAttemptAt.After(now) || e.Attempts >= maxAttempts {
				continue
			}
			res = append(res, e)
		}
		if limit > 0 && len(res) > limit {
			res = res[:limit]
		}
		for i := range res {
			res[i].NextAttemptAt = now.Add(lease)
			st.outbox[res[i].EventID] = res[i]
		}
		return nil
	})
	return res, err
}

func (s *Store) updateOutbox(ctx context.Context, eventID uuid.UUID, fn func(e *entity.OutboxEntry)) error {
	return s.run(ctx, func(st *state) error {
		e, ok := st.outbox[eventID]
		if !ok {
			return appers.ErrOutboxMissing
		}
		fn(&e)
		st.outbox[eventID] = e
		return nil
	})
}

func (s *Store) MarkSent(ctx context.Context, eventID uuid.UUID) error {
	return s.updateOutbox(ctx, eventID, func(e *entity.OutboxEntry) { e.Status = entity.OutboxSent })
}

func (s *Store) MarkFailedWithBackoff(ctx context.Context, eventID uuid.UUID, nextAttemptAt time.Time) error {
	return s.updateOutbox(ctx, eventID, func(e *entity.OutboxEntry) {
		e.Status = entity.OutboxFailed
		e.Attempts++
		e.NextAttemptAt = nextAttemptAt
	})
}

func (s *Store) MarkGaveUp(ctx context.Context, eventID uuid.UUID) error {
	return s.updateOutbox(ctx, eventID, func(e *entity.OutboxEntry) {
		e.Status = entity.OutboxGaveUp
		e.Attempts++
		e.NextAttemptAt = s.Now()
	})
}

func (s *Store) CountOutboxByStatus(ctx context.Context) (map[entity.OutboxStatus]int, error) {
	res := make(map[entity.OutboxStatus]int)
	err := s.run(ctx, func(st *state) error {
		for _, e := range st.outbox {
			res[e.Status]++
		}
		return nil
	})
	return res, err
}

// ===== bookings =====

func (s *Store) CreateBooking(ctx context.Context, b *entity.Booking) (int64, error) {
	var id int64
	err := s.run(ctx, func(st *state) error {
		st.bookingSeq++
		id = st.bookingSeq
		cp := *b
		cp.BookingID = id
		st.bookings[id] = cp
		return nil
	})
	return id, err
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	var res *entity.Booking
	err := s.run(ctx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return appers.ErrBookingNotFound
		}
		res = &b
		return nil
	})
	return res, err
}

func (s *Store) ListBookings(ctx context.Context) ([]*entity.Booking, error) {
	res := make([]*entity.Booking, 0)
	err := s.run(ctx, func(st *state) error {
		for _, b := range st.bookings {
			b := b
			res = append(res, &b)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].BookingID < res[j].BookingID })
	return res, err
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id int64, status entity.BookingStatus) error {
	return s.run(ctx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return appers.ErrBookingNotFound
		}
		b.Status = status
		st.bookings[id] = b
		return nil
	})
}

// ===== flights / reservations =====

func (s *Store) CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error) {
	var res *entity.Flight
	err := s.run(ctx, func(st *state) error {
		st.flightSeq++
		f := entity.Flight{FlightID: st.flightSeq, TotalSeats: totalSeats, AvailableSeats: totalSeats}
		st.flights[f.FlightID] = f
		res = &f
		return nil
	})
	return res, err
}

func (s *Store) GetFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	var res *entity.Flight
	err := s.run(ctx, func(st *state) error {
		f, ok := st.flights[id]
		if !ok {
			return appers.ErrFlightNotFound
		}
		res = &f
		return nil
	})
	return res, err
}

// LockFlight: транзакции и так сериализованы
func (s *Store) LockFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	return s.GetFlight(ctx, id)
}

func (s *Store) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	res := make([]*entity.Flight, 0)
	err := s.run(ctx, func(st *state) error {
		for _, f := range st.flights {
			f := f
			res = append(res, &f)
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].FlightID < res[j].FlightID })
	return res, err
}

// ErrSeatsOutOfRange аналог нарушения CHECK constraint flights_seats_range
var ErrSeatsOutOfRange = errors.New("available_seats out of range")

func (s *Store) AdjustAvailableSeats(ctx context.Context, id int64, delta int) error {
	return s.run(ctx, func(st *state) error {
		f, ok := st.flights[id]
		if !ok {
			return appers.ErrFlightNotFound
		}
		next := f.AvailableSeats + delta
		if next < 0 || next > f.TotalSeats {
			return ErrSeatsOutOfRange
		}
		f.AvailableSeats = next
		st.flights[id] = f
		return nil
	})
}

func (s *Store) CreateReservation(ctx context.Context, r *entity.Reservation) error {
	return s.run(ctx, func(st *state) error {
		if _, ok := st.reservations[r.BookingID]; ok {
			return nil // ON CONFLICT DO NOTHING
		}
		st.reservations[r.BookingID] = *r
		return nil
	})
}

func (s *Store) GetReservation(ctx context.Context, bookingID int64) (*entity.Reservation, error) {
	var res *entity.Reservation
	err := s.run(ctx, func(st *state) error {
		r, ok := st.reservations[bookingID]
		if !ok {
			return appers.ErrReservationNotFound
		}
		res = &r
		return nil
	})
	return res, err
}

func (s *Store) DeleteReservation(ctx context.Context, bookingID int64) error {
	return s.run(ctx, func(st *state) error {
		if _, ok := st.reservations[bookingID]; !ok {
			return appers.ErrReservationNotFound
		}
		delete(st.reservations, bookingID)
		return nil
	})
}

// ===== payments =====

func (s *Store) CreatePayment(ctx context.Context, p *entity.Payment) (int64, error) {
	amount, err := common.NumericFromString2Strict(p.Amount)
	if err != nil {
		return 0, err
	}
	canonical, err := common.NumericToString(amount)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.run(ctx, func(st *state) error {
		st.paymentSeq++
		id = st.paymentSeq
		cp := *p
		cp.PaymentID = id
		cp.Amount = canonical
		st.payments = append(st.payments, cp)
		return nil
	})
	return id, err
}

func (s *Store) GetPaymentByBooking(ctx context.Context, bookingID int64) (*entity.Payment, error) {
	var res *entity.Payment
	err := s.run(ctx, func(st *state) error {
		for i := len(st.payments) - 1; i >= 0; i-- {
			if st.payments[i].BookingID == bookingID {
				p := st.payments[i]
				res = &p
				return nil
			}
		}
		return appers.ErrPaymentNotFound
	})
	return res, err
}

// PaymentsCount число строк payments по бронированию
func (s *Store) PaymentsCount(bookingID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.st.payments {
		if p.BookingID == bookingID {
			n++
		}
	}
	return n
}
