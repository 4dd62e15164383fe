package saga

import "flightsaga/internal/application/entity"

// BookingTransition строка таблицы: статус x событие -> статус + ответное событие
type BookingTransition struct {
	From entity.BookingStatus
	On   string
	To   entity.BookingStatus
	Emit string
}

var BookingTransitions = []BookingTransition{
	{From: entity.StatusPending, On: entity.EventSeatReserved, To: entity.StatusSeatReserved, Emit: entity.EventBookingRequestedForPayment},
	{From: entity.StatusSeatReserved, On: entity.EventPaymentProcessed, To: entity.StatusConfirmed, Emit: entity.EventBookingConfirmed},
	{From: entity.StatusSeatReserved, On: entity.EventPaymentFailed, To: entity.StatusFailed, Emit: entity.EventBookingFailed},
	{From: entity.StatusPending, On: entity.EventSeatReservationFailed, To: entity.StatusFailed, Emit: entity.EventBookingFailed},
}

// BookingInputs события, на которые реагирует сервис бронирования
var BookingInputs = map[string]bool{
	entity.EventSeatReserved:          true,
	entity.EventPaymentProcessed:      true,
	entity.EventPaymentFailed:         true,
	entity.EventSeatReservationFailed: true,
}

type BookingDecision struct {
	Outcome Outcome
	Next    entity.BookingStatus
	Emit    []entity.Payload
}

// DecideBooking: b == nil, если бронирование не найдено.
func DecideBooking(b *entity.Booking, p entity.Payload, seatPrice float64) BookingDecision {
	if !BookingInputs[p.EventType()] || b == nil {
		return BookingDecision{Outcome: OutcomeIgnored}
	}

	for _, t := range BookingTransitions {
		if t.From != b.Status || t.On != p.EventType() {
			continue
		}
		return BookingDecision{
			Outcome: OutcomeApplied,
			Next:    t.To,
			Emit:    []entity.Payload{bookingReply(t.Emit, b.BookingID, seatPrice)},
		}
	}

	return BookingDecision{Outcome: OutcomeStale, Next: b.Status}
}

func bookingReply(eventType string, bookingID int64, seatPrice float64) entity.Payload {
	switch eventType {
	case entity.EventBookingRequestedForPayment:
		return entity.BookingRequestedForPayment{BookingID: bookingID, Amount: seatPrice}
	case entity.EventBookingConfirmed:
		return entity.BookingConfirmed{BookingID: bookingID}
	default:
		return entity.BookingFailed{BookingID: bookingID}
	}
}
