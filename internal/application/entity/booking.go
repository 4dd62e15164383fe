package entity

type BookingStatus string

const (
	StatusPending      BookingStatus = "PENDING"
	StatusSeatReserved BookingStatus = "SEAT_RESERVED"
	StatusConfirmed    BookingStatus = "CONFIRMED"
	StatusFailed       BookingStatus = "FAILED"
)

type Booking struct {
	BookingID  int64         `json:"booking_id" db:"booking_id"`
	FlightID   int64         `json:"flight_id" db:"flight_id"`
	UserID     string        `json:"user_id" db:"user_id"`
	SeatNumber string        `json:"seat_number" db:"seat_number"`
	Status     BookingStatus `json:"status" db:"status"`
}

// BookingRequest тело POST /bookings
type BookingRequest struct {
	FlightID   int64  `json:"flight_id" validate:"required,gt=0" example:"1"`
	UserID     string `json:"user_id" validate:"required,min=1,max=100" example:"user-42"`
	SeatNumber string `json:"seat_number" validate:"required,seat" example:"12A"`
}

type BookingCreatedResponse struct {
	BookingID int64         `json:"booking_id" example:"1"`
	Status    BookingStatus `json:"status" example:"PENDING"`
}

type PaymentRequestedResponse struct {
	BookingID int64  `json:"booking_id" example:"1"`
	Status    string `json:"status" example:"PAYMENT_REQUESTED"`
}

type Flight struct {
	FlightID       int64 `json:"flight_id" db:"flight_id"`
	TotalSeats     int   `json:"total_seats" db:"total_seats"`
	AvailableSeats int   `json:"available_seats" db:"available_seats"`
}

// FlightCreateRequest тело POST /flights и POST /flights/requests
type FlightCreateRequest struct {
	TotalSeats int `json:"total_seats" validate:"required,gt=0,max=1000" example:"180"`
}

type Reservation struct {
	BookingID  int64  `json:"booking_id" db:"booking_id"`
	FlightID   int64  `json:"flight_id" db:"flight_id"`
	SeatNumber string `json:"seat_number" db:"seat_number"`
}

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailure PaymentStatus = "FAILED"
)

type Payment struct {
	PaymentID int64         `json:"payment_id" db:"payment_id"`
	BookingID int64         `json:"booking_id" db:"booking_id"`
	Amount    string        `json:"amount" db:"amount" example:"100.00"` // NUMERIC(18,2)
	Status    PaymentStatus `json:"status" db:"status"`
}
