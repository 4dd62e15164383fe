package saga

import (
	"fmt"
	"testing"

	"flightsaga/internal/application/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingID = int64(11)

func samplePayload(eventType string) entity.Payload {
	switch eventType {
	case entity.EventBookingRequested:
		return entity.BookingRequested{BookingID: bookingID, FlightID: 1, SeatNumber: "1A"}
	case entity.EventSeatReserved:
		return entity.SeatReserved{BookingID: bookingID, FlightID: 1}
	case entity.EventSeatReservationFailed:
		return entity.SeatReservationFailed{BookingID: bookingID}
	case entity.EventBookingRequestedForPayment:
		return entity.BookingRequestedForPayment{BookingID: bookingID, Amount: 100}
	case entity.EventPaymentProcessed:
		return entity.PaymentProcessed{BookingID: bookingID}
	case entity.EventPaymentFailed:
		return entity.PaymentFailed{BookingID: bookingID}
	case entity.EventBookingFailed:
		return entity.BookingFailed{BookingID: bookingID}
	case entity.EventBookingConfirmed:
		return entity.BookingConfirmed{BookingID: bookingID}
	case entity.EventFlightCreationRequested:
		return entity.FlightCreationRequested{TotalSeats: 3}
	}
	panic("no sample for " + eventType)
}

func TestBookingTableExhaustive(t *testing.T) {
	statuses := []entity.BookingStatus{entity.StatusPending, entity.StatusSeatReserved, entity.StatusConfirmed, entity.StatusFailed}

	type want struct {
		next entity.BookingStatus
		emit entity.Payload
	}
	applied := map[string]want{
		fmt.Sprint(entity.StatusPending, entity.EventSeatReserved):          {entity.StatusSeatReserved, entity.BookingRequestedForPayment{BookingID: bookingID, Amount: 250}},
		fmt.Sprint(entity.StatusSeatReserved, entity.EventPaymentProcessed): {entity.StatusConfirmed, entity.BookingConfirmed{BookingID: bookingID}},
		fmt.Sprint(entity.StatusSeatReserved, entity.EventPaymentFailed):    {entity.StatusFailed, entity.BookingFailed{BookingID: bookingID}},
		fmt.Sprint(entity.StatusPending, entity.EventSeatReservationFailed): {entity.StatusFailed, entity.BookingFailed{BookingID: bookingID}},
	}

	for _, status := range statuses {
		for _, eventType := range Catalog {
			name := fmt.Sprint(status, eventType)
			t.Run(name, func(t *testing.T) {
				b := &entity.Booking{BookingID: bookingID, Status: status}
				d := DecideBooking(b, samplePayload(eventType), 250)

				switch w, ok := applied[name]; {
				case ok:
					assert.Equal(t, OutcomeApplied, d.Outcome)
					assert.Equal(t, w.next, d.Next)
					assert.Equal(t, []entity.Payload{w.emit}, d.Emit)
				case BookingInputs[eventType]:
					assert.Equal(t, OutcomeStale, d.Outcome)
					assert.Equal(t, status, d.Next)
					assert.Empty(t, d.Emit)
				default:
					assert.Equal(t, OutcomeIgnored, d.Outcome)
					assert.Empty(t, d.Emit)
				}
			})
		}
	}
}

func TestBookingUnknownBookingIgnored(t *testing.T) {
	d := DecideBooking(nil, samplePayload(entity.EventSeatReserved), 100)
	assert.Equal(t, OutcomeIgnored, d.Outcome)
	assert.Empty(t, d.Emit)
}

func TestBookingUnknownEventIgnored(t *testing.T) {
	b := &entity.Booking{BookingID: bookingID, Status: entity.StatusPending}
	d := DecideBooking(b, entity.UnknownPayload{Type: "SeatUpgraded"}, 100)
	assert.Equal(t, OutcomeIgnored, d.Outcome)
}

func TestBookingTerminalStatusesHaveNoExits(t *testing.T) {
	for _, tr := range BookingTransitions {
		assert.NotEqual(t, entity.StatusConfirmed, tr.From)
		assert.NotEqual(t, entity.StatusFailed, tr.From)
	}
}

func TestDecideReserve(t *testing.T) {
	req := entity.BookingRequested{BookingID: bookingID, FlightID: 4, SeatNumber: "7C"}

	d := DecideReserve(req, &entity.Flight{FlightID: 4, TotalSeats: 2, AvailableSeats: 1}, nil)
	assert.Equal(t, OutcomeApplied, d.Outcome)
	assert.Equal(t, -1, d.SeatsDelta)
	require.NotNil(t, d.Reserve)
	assert.Equal(t, entity.Reservation{BookingID: bookingID, FlightID: 4, SeatNumber: "7C"}, *d.Reserve)
	assert.Equal(t, []entity.Payload{entity.SeatReserved{BookingID: bookingID, FlightID: 4}}, d.Emit)

	d = DecideReserve(req, &entity.Flight{FlightID: 4, TotalSeats: 2, AvailableSeats: 0}, nil)
	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Zero(t, d.SeatsDelta)
	assert.Nil(t, d.Reserve)
	assert.Equal(t, []entity.Payload{entity.SeatReservationFailed{BookingID: bookingID}}, d.Emit)

	d = DecideReserve(req, nil, nil)
	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Equal(t, []entity.Payload{entity.SeatReservationFailed{BookingID: bookingID}}, d.Emit)

	d = DecideReserve(req, &entity.Flight{FlightID: 4, TotalSeats: 2, AvailableSeats: 1},
		&entity.Reservation{BookingID: bookingID, FlightID: 4, SeatNumber: "7C"})
	assert.Equal(t, OutcomeStale, d.Outcome)
	assert.Zero(t, d.SeatsDelta)
	assert.Empty(t, d.Emit)
}

func TestDecideRelease(t *testing.T) {
	d := DecideRelease(&entity.Reservation{BookingID: bookingID, FlightID: 4})
	assert.Equal(t, OutcomeApplied, d.Outcome)
	assert.Equal(t, int64(4), d.FlightID)
	assert.Equal(t, 1, d.SeatsDelta)
	assert.True(t, d.Release)

	d = DecideRelease(nil)
	assert.Equal(t, OutcomeStale, d.Outcome)
	assert.Zero(t, d.SeatsDelta)
	assert.False(t, d.Release)
}

func TestDecidePayment(t *testing.T) {
	req := entity.BookingRequestedForPayment{BookingID: bookingID, Amount: 100}

	d := DecidePayment(req, true)
	assert.Equal(t, entity.PaymentSuccess, d.Status)
	assert.Equal(t, []entity.Payload{entity.PaymentProcessed{BookingID: bookingID}}, d.Emit)

	d = DecidePayment(req, false)
	assert.Equal(t, entity.PaymentFailure, d.Status)
	assert.Equal(t, []entity.Payload{entity.PaymentFailed{BookingID: bookingID}}, d.Emit)
}

func TestInputsCoverCatalog(t *testing.T) {
	for _, inputs := range []map[string]bool{BookingInputs, FlightInputs, PaymentInputs} {
		for eventType := range inputs {
			assert.Contains(t, Catalog, eventType)
		}
	}
}
