package saga

import "flightsaga/internal/application/entity"

// PaymentInputs события, на которые реагирует платёжный сервис
var PaymentInputs = map[string]bool{
	entity.EventBookingRequestedForPayment: true,
}

type PaymentDecision struct {
	Outcome Outcome
	Status  entity.PaymentStatus
	Emit    []entity.Payload
}

// DecidePayment по результату списания у шлюза
func DecidePayment(req entity.BookingRequestedForPayment, charged bool) PaymentDecision {
	if charged {
		return PaymentDecision{
			Outcome: OutcomeApplied,
			Status:  entity.PaymentSuccess,
			Emit:    []entity.Payload{entity.PaymentProcessed{BookingID: req.BookingID}},
		}
	}
	return PaymentDecision{
		Outcome: OutcomeRejected,
		Status:  entity.PaymentFailure,
		Emit:    []entity.Payload{entity.PaymentFailed{BookingID: req.BookingID}},
	}
}
