package service

import (
	"context"
	"errors"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/saga"
	"flightsaga/pkg/config"
)

func (s *ServiceImpl) CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error) {
	f, err := s.repo.CreateFlight(ctx, totalSeats)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("[flight: %d] created with %d seats", f.FlightID, f.TotalSeats)
	return f, nil
}

func (s *ServiceImpl) GetFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	return s.repo.GetFlight(ctx, id)
}

func (s *ServiceImpl) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	return s.repo.ListFlights(ctx)
}

// handleFlight реакция сервиса рейсов; вызывается внутри транзакции inbox
func (s *ServiceImpl) handleFlight(ctx context.Context, evt entity.Event, p entity.Payload) error {
	var (
		d   saga.FlightDecision
		err error
	)

	switch v := p.(type) {
	case entity.BookingRequested:
		d, err = s.decideReserve(ctx, v)
	case entity.BookingFailed:
		d, err = s.decideRelease(ctx, v)
	case entity.FlightCreationRequested:
		f, err := s.repo.CreateFlight(ctx, v.TotalSeats)
		if err != nil {
			return err
		}
		s.observe(config.ServiceFlight, evt.Type, saga.OutcomeApplied)
		s.logger.Infof("[ID %s] flight %d created with %d seats", evt.ID, f.FlightID, f.TotalSeats)
		return nil
	default:
		s.observe(config.ServiceFlight, evt.Type, saga.OutcomeIgnored)
		return nil
	}
	if err != nil {
		return err
	}

	s.observe(config.ServiceFlight, evt.Type, d.Outcome)
	if d.Outcome == saga.OutcomeStale {
		s.logger.Infof("[ID %s] %s is a no-op for flight %d", evt.ID, evt.Type, d.FlightID)
		return nil
	}

	if d.SeatsDelta != 0 {
		if err := s.repo.AdjustAvailableSeats(ctx, d.FlightID, d.SeatsDelta); err != nil {
			return err
		}
	}
	if d.Reserve != nil {
		if err := s.repo.CreateReservation(ctx, d.Reserve); err != nil {
			return err
		}
		s.logger.Infof("[booking: %d] seat %s reserved on flight %d", d.Reserve.BookingID, d.Reserve.SeatNumber, d.FlightID)
	}
	if d.Release {
		ref := p.(entity.BookingScoped).BookingRef()
		if err := s.repo.DeleteReservation(ctx, ref); err != nil {
			return err
		}
		s.logger.Infof("[booking: %d] seat released on flight %d", ref, d.FlightID)
	}

	for _, out := range d.Emit {
		if _, err := s.Publish(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

// decideReserve: строка рейса блокируется до конца транзакции, проверка и списание места атомарны
func (s *ServiceImpl) decideReserve(ctx context.Context, req entity.BookingRequested) (saga.FlightDecision, error) {
	f, err := s.repo.LockFlight(ctx, req.FlightID)
	switch {
	case errors.Is(err, appers.ErrFlightNotFound):
		s.logger.Warnf("[booking: %d] flight %d not found", req.BookingID, req.FlightID)
		f = nil
	case err != nil:
		return saga.FlightDecision{}, err
	}

	existing, err := s.reservation(ctx, req.BookingID)
	if err != nil {
		return saga.FlightDecision{}, err
	}

	return saga.DecideReserve(req, f, existing), nil
}

func (s *ServiceImpl) decideRelease(ctx context.Context, ev entity.BookingFailed) (saga.FlightDecision, error) {
	existing, err := s.reservation(ctx, ev.BookingID)
	if err != nil {
		return saga.FlightDecision{}, err
	}
	if existing != nil {
		if _, err := s.repo.LockFlight(ctx, existing.FlightID); err != nil {
			return saga.FlightDecision{}, err
		}
	}
	return saga.DecideRelease(existing), nil
}

func (s *ServiceImpl) reservation(ctx context.Context, bookingID int64) (*entity.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, bookingID)
	if errors.Is(err, appers.ErrReservationNotFound) {
		return nil, nil
	}
	return r, err
}
