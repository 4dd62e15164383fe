package repo

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func (r *RepoImpl) CreatePayment(ctx context.Context, p *entity.Payment) (int64, error) {
	amount, err := common.NumericFromString2Strict(p.Amount)
	if err != nil {
		return 0, fmt.Errorf("[booking: %d] amount %q: %w", p.BookingID, p.Amount, err)
	}

	var id int64
	err = r.queryRow(ctx, "create_payment", createPayment,
		[]any{p.BookingID, amount, string(p.Status)}, &id)
	if err != nil {
		r.logger.Errorf("[booking: %d] insert payment failed: %v", p.BookingID, err)
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	r.logger.Debugf("[booking: %d] payment %d stored, status %s", p.BookingID, id, p.Status)
	return id, nil
}

func (r *RepoImpl) GetPaymentByBooking(ctx context.Context, bookingID int64) (*entity.Payment, error) {
	var p entity.Payment
	var amount pgtype.Numeric
	var status string
	err := r.queryRow(ctx, "get_payment", getPaymentByBooking, []any{bookingID},
		&p.PaymentID, &p.BookingID, &amount, &status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrPaymentNotFound
	case err != nil:
		return nil, fmt.Errorf("get payment: %w", err)
	}

	if p.Amount, err = common.NumericToString(amount); err != nil {
		return nil, fmt.Errorf("payment amount: %w", err)
	}
	p.Status = entity.PaymentStatus(status)
	return &p, nil
}
