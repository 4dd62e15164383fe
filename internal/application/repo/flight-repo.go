package repo

import (
	"context"
	"errors"
	"fmt"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/entity"

	"github.com/jackc/pgx/v5"
)

func (r *RepoImpl) CreateFlight(ctx context.Context, totalSeats int) (*entity.Flight, error) {
	var f entity.Flight
	err := r.queryRow(ctx, "create_flight", createFlight, []any{totalSeats},
		&f.FlightID, &f.TotalSeats, &f.AvailableSeats)
	if err != nil {
		r.logger.Errorf("[seats: %d] error inserting flight: %v", totalSeats, err)
		return nil, fmt.Errorf("error inserting flight: %w", err)
	}
	r.logger.Infof("[flight: %d] created with %d seats", f.FlightID, f.TotalSeats)
	return &f, nil
}

func (r *RepoImpl) GetFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	return r.scanFlight(ctx, "get_flight", getFlight, id)
}

func (r *RepoImpl) LockFlight(ctx context.Context, id int64) (*entity.Flight, error) {
	return r.scanFlight(ctx, "lock_flight", lockFlight, id)
}

func (r *RepoImpl) scanFlight(ctx context.Context, name, query string, id int64) (*entity.Flight, error) {
	var f entity.Flight
	err := r.queryRow(ctx, name, query, []any{id}, &f.FlightID, &f.TotalSeats, &f.AvailableSeats)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrFlightNotFound
	case err != nil:
		r.logger.Errorf("[flight: %d] %s failed: %v", id, name, err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &f, nil
}

func (r *RepoImpl) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	rows, err := r.query(ctx, "list_flights", listFlights)
	if err != nil {
		return nil, fmt.Errorf("error listing flights: %w", err)
	}
	defer rows.Close()

	res := make([]*entity.Flight, 0)
	for rows.Next() {
		var f entity.Flight
		if err := rows.Scan(&f.FlightID, &f.TotalSeats, &f.AvailableSeats); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		res = append(res, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flights rows err: %w", err)
	}
	return res, nil
}

// AdjustAvailableSeats: выход за [0, total_seats] отсекает CHECK constraint таблицы
func (r *RepoImpl) AdjustAvailableSeats(ctx context.Context, id int64, delta int) error {
	result, err := r.exec(ctx, "adjust_seats", adjustSeats, id, delta)
	if err != nil {
		r.logger.Errorf("[flight: %d] adjust seats by %d failed: %v", id, delta, err)
		return fmt.Errorf("adjust seats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrFlightNotFound
	}
	return nil
}

func (r *RepoImpl) CreateReservation(ctx context.Context, res *entity.Reservation) error {
	_, err := r.exec(ctx, "create_reservation", createReservation, res.BookingID, res.FlightID, res.SeatNumber)
	if err != nil {
		r.logger.Errorf("[booking: %d] insert reservation failed: %v", res.BookingID, err)
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *RepoImpl) GetReservation(ctx context.Context, bookingID int64) (*entity.Reservation, error) {
	var res entity.Reservation
	err := r.queryRow(ctx, "get_reservation", getReservation, []any{bookingID},
		&res.BookingID, &res.FlightID, &res.SeatNumber)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrReservationNotFound
	case err != nil:
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

func (r *RepoImpl) DeleteReservation(ctx context.Context, bookingID int64) error {
	result, err := r.exec(ctx, "delete_reservation", deleteReservation, bookingID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrReservationNotFound
	}
	return nil
}
