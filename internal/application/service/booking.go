package service

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/saga"
	"flightsaga/internal/transport/notifier"
	"flightsaga/pkg/config"
	"flightsaga/pkg/db"

	"github.com/gofrs/uuid"
)

// CreateBooking сохраняет бронирование PENDING и BookingRequested в одной транзакции
func (s *ServiceImpl) CreateBooking(ctx context.Context, req entity.BookingRequest) (*entity.BookingCreatedResponse, error) {
	s.logger.Debugf("[flight: %d, user: %s] CreateBooking started", req.FlightID, req.UserID)

	var id int64
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.repo.CreateBooking(ctx, &entity.Booking{
			FlightID:   req.FlightID,
			UserID:     req.UserID,
			SeatNumber: req.SeatNumber,
			Status:     entity.StatusPending,
		})
		if err != nil {
			return err
		}

		_, err = s.Publish(ctx, entity.BookingRequested{BookingID: id, FlightID: req.FlightID, SeatNumber: req.SeatNumber})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Infof("[booking: %d] created, flight %d seat %s", id, req.FlightID, req.SeatNumber)
	return &entity.BookingCreatedResponse{BookingID: id, Status: entity.StatusPending}, nil
}

func (s *ServiceImpl) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *ServiceImpl) ListBookings(ctx context.Context) ([]*entity.Booking, error) {
	return s.repo.ListBookings(ctx)
}

// RequestFlightCreation рейс создаст сервис рейсов, получив событие
func (s *ServiceImpl) RequestFlightCreation(ctx context.Context, totalSeats int) (uuid.UUID, error) {
	s.logger.Debugf("[seats: %d] RequestFlightCreation started", totalSeats)
	return s.Publish(ctx, entity.FlightCreationRequested{TotalSeats: totalSeats})
}

// RequestPayment повторно запрашивает оплату существующего бронирования
func (s *ServiceImpl) RequestPayment(ctx context.Context, bookingID int64) error {
	if _, err := s.repo.GetBooking(ctx, bookingID); err != nil {
		return err
	}
	_, err := s.Publish(ctx, entity.BookingRequestedForPayment{BookingID: bookingID, Amount: s.seatPrice})
	return err
}

// handleBooking реакция сервиса бронирования; вызывается внутри транзакции inbox
func (s *ServiceImpl) handleBooking(ctx context.Context, evt entity.Event, p entity.Payload) error {
	var b *entity.Booking
	if ref, ok := p.(entity.BookingScoped); ok && saga.BookingInputs[evt.Type] {
		found, err := s.repo.GetBooking(ctx, ref.BookingRef())
		switch {
		case errors.Is(err, appers.ErrBookingNotFound):
			s.logger.Warnf("[ID %s] %s for unknown booking %d", evt.ID, evt.Type, ref.BookingRef())
		case err != nil:
			return err
		default:
			b = found
		}
	}

	d := saga.DecideBooking(b, p, s.seatPrice)
	s.observe(config.ServiceBooking, evt.Type, d.Outcome)

	switch d.Outcome {
	case saga.OutcomeIgnored:
		return nil
	case saga.OutcomeStale:
		s.logger.Infof("[ID %s] %s stale for booking %d in status %s", evt.ID, evt.Type, b.BookingID, b.Status)
		return nil
	}

	if err := s.repo.UpdateBookingStatus(ctx, b.BookingID, d.Next); err != nil {
		return err
	}
	s.logger.Infof("[booking: %d] %s -> %s on %s", b.BookingID, b.Status, d.Next, evt.Type)

	for _, out := range d.Emit {
		if _, err := s.Publish(ctx, out); err != nil {
			return err
		}
		s.notifyOutcome(ctx, out)
	}
	return nil
}

// notifyOutcome итог саги уходит в RabbitMQ после коммита; ошибки только логируются
func (s *ServiceImpl) notifyOutcome(ctx context.Context, p entity.Payload) {
	var key string
	switch p.(type) {
	case entity.BookingConfirmed:
		key = notifier.KeyBookingConfirmed
	case entity.BookingFailed:
		key = notifier.KeyBookingFailed
	default:
		return
	}

	db.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.notifier.Notify(context.WithoutCancel(ctx), key, p); err != nil {
			s.logger.Warnf("notify %s failed: %v", key, err)
		}
	})
}
