package repo

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"

	"github.com/jackc/pgx/v5"
)

func (r *RepoImpl) CreateBooking(ctx context.Context, b *entity.Booking) (int64, error) {
	r.logger.Debugf("[flight: %d, user: %s] start inserting booking into DB", b.FlightID, b.UserID)

	var id int64
	err := r.queryRow(ctx, "create_booking", createBooking,
		[]any{b.FlightID, b.UserID, b.SeatNumber, string(b.Status)}, &id)
	if err != nil {
		r.logger.Errorf("[flight: %d, user: %s] error inserting booking: %v", b.FlightID, b.UserID, err)
		return 0, fmt.Errorf("error inserting booking: %w", err)
	}

	r.logger.Debugf("[booking: %d] inserted into DB successfully", id)
	return id, nil
}

func (r *RepoImpl) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	var b entity.Booking
	var status string
	err := r.queryRow(ctx, "get_booking", getBooking, []any{id},
		&b.BookingID, &b.FlightID, &b.UserID, &b.SeatNumber, &status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrBookingNotFound
	case err != nil:
		r.logger.Errorf("[booking: %d] error getting from DB: %v", id, err)
		return nil, fmt.Errorf("error getting booking: %w", err)
	}
	b.Status = entity.BookingStatus(status)
	return &b, nil
}

func (r *RepoImpl) ListBookings(ctx context.Context) ([]*entity.Booking, error) {
	rows, err := r.query(ctx, "list_bookings", listBookings)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer rows.Close()

	res := make([]*entity.Booking, 0)
	for rows.Next() {
		var b entity.Booking
		var status string
		if err := rows.Scan(&b.BookingID, &b.FlightID, &b.UserID, &b.SeatNumber, &status); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Status = entity.BookingStatus(status)
		res = append(res, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings rows err: %w", err)
	}
	return res, nil
}

func (r *RepoImpl) UpdateBookingStatus(ctx context.Context, id int64, status entity.BookingStatus) error {
	r.logger.Debugf("[booking: %d] set status %s", id, status)

	result, err := r.exec(ctx, "update_booking_status", updateBookingStatus, id, string(status))
	if err != nil {
		r.logger.Errorf("[booking: %d] error updating status: %v", id, err)
		return fmt.Errorf("error updating booking status: %w", err)
	}
	if result.RowsAffected() == 0 {
		r.logger.Warnf("[booking: %d] no rows updated", id)
		return appers.ErrBookingNotFound
	}
	return nil
}
