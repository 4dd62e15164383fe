package saga

import "flightsaga/internal/application/entity"

// FlightInputs события, на которые реагирует сервис рейсов
var FlightInputs = map[string]bool{
	entity.EventBookingRequested:        true,
	entity.EventBookingFailed:           true,
	entity.EventFlightCreationRequested: true,
}

type FlightDecision struct {
	Outcome    Outcome
	FlightID   int64
	SeatsDelta int
	// Reserve создать резерв места
	Reserve *entity.Reservation
	// Release удалить резерв бронирования
	Release bool
	Emit    []entity.Payload
}

// DecideReserve вызывается под блокировкой строки рейса. f == nil, если рейса нет;
// existing: уже имеющийся резерв этого бронирования.
func DecideReserve(req entity.BookingRequested, f *entity.Flight, existing *entity.Reservation) FlightDecision {
	if existing != nil {
		// место уже списано предыдущим BookingRequested этого бронирования
		return FlightDecision{Outcome: OutcomeStale, FlightID: existing.FlightID}
	}
	if f == nil || f.AvailableSeats <= 0 {
		return FlightDecision{
			Outcome:  OutcomeRejected,
			FlightID: req.FlightID,
			Emit:     []entity.Payload{entity.SeatReservationFailed{BookingID: req.BookingID}},
		}
	}
	return FlightDecision{
		Outcome:    OutcomeApplied,
		FlightID:   f.FlightID,
		SeatsDelta: -1,
		Reserve:    &entity.Reservation{BookingID: req.BookingID, FlightID: f.FlightID, SeatNumber: req.SeatNumber},
		Emit:       []entity.Payload{entity.SeatReserved{BookingID: req.BookingID, FlightID: f.FlightID}},
	}
}

// DecideRelease компенсация по BookingFailed; без резерва это no-op.
func DecideRelease(existing *entity.Reservation) FlightDecision {
	if existing == nil {
		return FlightDecision{Outcome: OutcomeStale}
	}
	return FlightDecision{
		Outcome:    OutcomeApplied,
		FlightID:   existing.FlightID,
		SeatsDelta: 1,
		Release:    true,
	}
}
