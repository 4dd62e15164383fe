// Package saga holds the reaction tables of the booking, flight and payment
// services. Functions here are pure: they take the current entity state and an
// incoming event and return what to change and what to publish. Storage and
// publishing are done by the service layer.
package saga

import "flightsaga/internal/application/entity"

type Outcome string

const (
	// OutcomeApplied состояние меняется, ответные события публикуются
	OutcomeApplied Outcome = "applied"
	// OutcomeRejected бизнес-отказ: состояние не меняется, публикуется событие отказа
	OutcomeRejected Outcome = "rejected"
	// OutcomeStale событие опоздало для текущего статуса: ничего не меняем и не публикуем
	OutcomeStale Outcome = "stale"
	// OutcomeIgnored сервис не реагирует на этот тип события или сущность не найдена
	OutcomeIgnored Outcome = "ignored"
)

// Catalog все типы событий, известные сервисам
var Catalog = []string{
	entity.EventBookingRequested,
	entity.EventSeatReserved,
	entity.EventSeatReservationFailed,
	entity.EventBookingRequestedForPayment,
	entity.EventPaymentProcessed,
	entity.EventPaymentFailed,
	entity.EventBookingFailed,
	entity.EventBookingConfirmed,
	entity.EventFlightCreationRequested,
}
