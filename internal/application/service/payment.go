package service

import (
	"context"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"
	"flightsaga/internal/application/saga"
	"flightsaga/pkg/config"
)

func (s *ServiceImpl) GetPayment(ctx context.Context, bookingID int64) (*entity.Payment, error) {
	return s.repo.GetPaymentByBooking(ctx, bookingID)
}

// handlePayment реакция платёжного сервиса; вызывается внутри транзакции inbox.
// Ошибка шлюза откатывает транзакцию, запись остаётся в pending до reclaim.
func (s *ServiceImpl) handlePayment(ctx context.Context, evt entity.Event, p entity.Payload) error {
	req, ok := p.(entity.BookingRequestedForPayment)
	if !ok {
		s.observe(config.ServicePayment, evt.Type, saga.OutcomeIgnored)
		return nil
	}

	// сумма, не помещающаяся в NUMERIC(18,2), никогда не сохранится: списания нет
	amount, err := paymentAmount(req.Amount)
	if err != nil {
		return fmt.Errorf("%w: [booking: %d] amount %v: %w", appers.ErrPoisonMessage, req.BookingID, req.Amount, err)
	}

	charged, err := s.gateway.Charge(ctx, req.BookingID, req.Amount)
	if err != nil {
		return fmt.Errorf("[booking: %d] %w: %w", req.BookingID, appers.ErrGateway, err)
	}

	d := saga.DecidePayment(req, charged)
	s.observe(config.ServicePayment, evt.Type, d.Outcome)

	paymentID, err := s.repo.CreatePayment(ctx, &entity.Payment{
		BookingID: req.BookingID,
		Amount:    amount,
		Status:    d.Status,
	})
	if err != nil {
		return err
	}
	s.logger.Infof("[booking: %d] payment %d %s, amount %.2f", req.BookingID, paymentID, d.Status, req.Amount)

	for _, out := range d.Emit {
		if _, err := s.Publish(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func paymentAmount(amount float64) (string, error) {
	n, err := common.AmountToNumeric(amount)
	if err != nil {
		return "", err
	}
	return common.NumericToString(n)
}
