package entity

import (
	"encoding/json"
	"fmt"
	"strconv"

	"flightsaga/internal/appers"
	"flightsaga/pkg/validator"

	"github.com/gofrs/uuid"
)

// Каталог событий саги
const (
	EventBookingRequested           = "BookingRequested"
	EventSeatReserved               = "SeatReserved"
	EventSeatReservationFailed      = "SeatReservationFailed"
	EventBookingRequestedForPayment = "BookingRequestedForPayment"
	EventPaymentProcessed           = "PaymentProcessed"
	EventPaymentFailed              = "PaymentFailed"
	EventBookingFailed              = "BookingFailed"
	EventBookingConfirmed           = "BookingConfirmed"
	EventFlightCreationRequested    = "FlightCreationRequested"
)

// Event конверт события: он же лежит в поле payload записи stream.
type Event struct {
	ID      uuid.UUID       `json:"event_id" validate:"required"`
	Type    string          `json:"event_type" validate:"required,event_type"`
	Payload json.RawMessage `json:"payload"`
}

// Payload типизированное тело события.
type Payload interface {
	EventType() string
}

// BookingScoped реализуют события, относящиеся к конкретному бронированию.
type BookingScoped interface {
	BookingRef() int64
}

type BookingRequested struct {
	BookingID  int64  `json:"booking_id" validate:"required,gt=0"`
	FlightID   int64  `json:"flight_id" validate:"required,gt=0"`
	SeatNumber string `json:"seat_number" validate:"required,max=10"`
}

type SeatReserved struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
	FlightID  int64 `json:"flight_id" validate:"required,gt=0"`
}

type SeatReservationFailed struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type BookingRequestedForPayment struct {
	BookingID int64   `json:"booking_id" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

type PaymentProcessed struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type PaymentFailed struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type BookingFailed struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type BookingConfirmed struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type FlightCreationRequested struct {
	TotalSeats int `json:"total_seats" validate:"required,gt=0"`
}

// UnknownPayload тип события вне каталога; обработчики его игнорируют.
type UnknownPayload struct {
	Type string
	Raw  json.RawMessage
}

func (BookingRequested) EventType() string           { return EventBookingRequested }
func (SeatReserved) EventType() string               { return EventSeatReserved }
func (SeatReservationFailed) EventType() string      { return EventSeatReservationFailed }
func (BookingRequestedForPayment) EventType() string { return EventBookingRequestedForPayment }
func (PaymentProcessed) EventType() string           { return EventPaymentProcessed }
func (PaymentFailed) EventType() string              { return EventPaymentFailed }
func (BookingFailed) EventType() string              { return EventBookingFailed }
func (BookingConfirmed) EventType() string           { return EventBookingConfirmed }
func (FlightCreationRequested) EventType() string    { return EventFlightCreationRequested }
func (u UnknownPayload) EventType() string           { return u.Type }

func (p BookingRequested) BookingRef() int64           { return p.BookingID }
func (p SeatReserved) BookingRef() int64               { return p.BookingID }
func (p SeatReservationFailed) BookingRef() int64      { return p.BookingID }
func (p BookingRequestedForPayment) BookingRef() int64 { return p.BookingID }
func (p PaymentProcessed) BookingRef() int64           { return p.BookingID }
func (p PaymentFailed) BookingRef() int64              { return p.BookingID }
func (p BookingFailed) BookingRef() int64              { return p.BookingID }
func (p BookingConfirmed) BookingRef() int64           { return p.BookingID }

var decoders = map[string]func(json.RawMessage) (Payload, error){
	EventBookingRequested:           decodeAs[BookingRequested],
	EventSeatReserved:               decodeAs[SeatReserved],
	EventSeatReservationFailed:      decodeAs[SeatReservationFailed],
	EventBookingRequestedForPayment: decodeAs[BookingRequestedForPayment],
	EventPaymentProcessed:           decodeAs[PaymentProcessed],
	EventPaymentFailed:              decodeAs[PaymentFailed],
	EventBookingFailed:              decodeAs[BookingFailed],
	EventBookingConfirmed:           decodeAs[BookingConfirmed],
	EventFlightCreationRequested:    decodeAs[FlightCreationRequested],
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", appers.ErrPoisonMessage, err)
	}
	if err := validator.Validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", appers.ErrPoisonMessage, err)
	}
	return p, nil
}

// NewEvent собирает конверт с готовым идентификатором.
func NewEvent(id uuid.UUID, p Payload) (Event, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return Event{ID: id, Type: p.EventType(), Payload: raw}, nil
}

// ParseEvent разбирает JSON конверт из записи stream. Любая ошибка оборачивает ErrPoisonMessage.
func ParseEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("%w: decode envelope: %v", appers.ErrPoisonMessage, err)
	}
	if err := validator.Validate.Struct(e); err != nil {
		return Event{}, fmt.Errorf("%w: invalid envelope: %v", appers.ErrPoisonMessage, err)
	}
	return e, nil
}

// Decode возвращает типизированный payload. Тип вне каталога даёт UnknownPayload без ошибки.
func (e Event) Decode() (Payload, error) {
	decode, ok := decoders[e.Type]
	if !ok {
		return UnknownPayload{Type: e.Type, Raw: e.Payload}, nil
	}
	return decode(e.Payload)
}

// PartitionKey события одного бронирования идут в одну партицию.
func PartitionKey(id uuid.UUID, p Payload) string {
	if b, ok := p.(BookingScoped); ok {
		return strconv.FormatInt(b.BookingRef(), 10)
	}
	return id.String()
}
