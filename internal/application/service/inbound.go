package service

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"
	"flightsaga/pkg/config"
)

type eventHandler func(ctx context.Context, evt entity.Event, p entity.Payload) error

func (s *ServiceImpl) handlerFor(service string) (eventHandler, error) {
	switch service {
	case config.ServiceBooking:
		return s.handleBooking, nil
	case config.ServiceFlight:
		return s.handleFlight, nil
	case config.ServicePayment:
		return s.handlePayment, nil
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

// HandleEvent: payload проверяется до inbox, невалидное событие возвращает ErrPoisonMessage.
// Маркер inbox и реакция саги фиксируются одной транзакцией; повтор даёт ErrDuplicateEvent.
func (s *ServiceImpl) HandleEvent(ctx context.Context, service string, evt entity.Event) error {
	handle, err := s.handlerFor(service)
	if err != nil {
		return err
	}

	p, err := evt.Decode()
	if err != nil {
		return err
	}
	if u, ok := p.(entity.UnknownPayload); ok {
		s.logger.Debugf("[ID %s] unknown event type %s, recorded and skipped", evt.ID, u.Type)
	}

	err = s.transactions.ProcessInbound(ctx, service, evt, func(ctx context.Context) error {
		return handle(ctx, evt, p)
	})
	if err != nil && !errors.Is(err, appers.ErrDuplicateEvent) {
		s.logger.Errorf("[ID %s] %s handler for %s failed: %v", evt.ID, service, evt.Type, err)
	}
	return err
}
