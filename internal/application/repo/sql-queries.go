package repo

// BOOKINGS
const createBooking = `INSERT INTO bookings (flight_id, user_id, seat_number, status)
VALUES ($1, $2, $3, $4)
RETURNING booking_id;`

const getBooking = `SELECT booking_id, flight_id, user_id, seat_number, status
FROM bookings WHERE booking_id = $1`

const listBookings = `SELECT booking_id, flight_id, user_id, seat_number, status
FROM bookings ORDER BY booking_id`

const updateBookingStatus = `UPDATE bookings SET status = $2, updated_at = now() WHERE booking_id = $1`

// FLIGHTS
const createFlight = `INSERT INTO flights (total_seats, available_seats)
VALUES ($1, $1)
RETURNING flight_id, total_seats, available_seats;`

const getFlight = `SELECT flight_id, total_seats, available_seats FROM flights WHERE flight_id = $1`

// проверка и списание места под одной блокировкой строки
const lockFlight = `SELECT flight_id, total_seats, available_seats FROM flights WHERE flight_id = $1 FOR UPDATE`

const listFlights = `SELECT flight_id, total_seats, available_seats FROM flights ORDER BY flight_id`

const adjustSeats = `UPDATE flights SET available_seats = available_seats + $2
WHERE flight_id = $1`

// RESERVATIONS
const createReservation = `INSERT INTO reservations (booking_id, flight_id, seat_number)
VALUES ($1, $2, $3)
ON CONFLICT (booking_id) DO NOTHING`

const getReservation = `SELECT booking_id, flight_id, seat_number FROM reservations WHERE booking_id = $1`

const deleteReservation = `DELETE FROM reservations WHERE booking_id = $1`

// PAYMENTS
const createPayment = `INSERT INTO payments (booking_id, amount, status)
VALUES ($1, $2, $3)
RETURNING payment_id;`

// последняя попытка оплаты по бронированию
const getPaymentByBooking = `SELECT payment_id, booking_id, amount, status FROM payments
WHERE booking_id = $1
ORDER BY payment_id DESC
LIMIT 1`

// INBOX
const insertInbox = `INSERT INTO inbox (event_id, consumer, event_type, payload)
VALUES ($1, $2, $3, ($4)::jsonb)
ON CONFLICT (event_id, consumer) DO NOTHING`

// OUTBOX
// next_attempt_at сдвинут на lease: релей подбирает только то, что не подтвердила inline-публикация
const insertOutboxQuery = `
INSERT INTO outbox (
  event_id, event_type, payload, partition_key, status, attempts, next_attempt_at, inserted_at
) VALUES ($1, $2, ($3)::jsonb, $4, $5, 0, now() + $6::interval, now())
`

const reserveBatchSQL = `
WITH picked AS (
	SELECT event_id
  	FROM outbox
  	WHERE status IN ('NEW','FAILED')
		AND next_attempt_at <= now()
    	AND attempts < $3
  	ORDER BY inserted_at
  	FOR UPDATE SKIP LOCKED
	LIMIT $2
)
UPDATE outbox AS o
SET next_attempt_at = now() + $1::interval
FROM picked
WHERE o.event_id = picked.event_id
RETURNING o.event_id, o.event_type, o.payload, o.partition_key, o.status, o.attempts, o.next_attempt_at, o.inserted_at;
`

const markFailedSQL = `
UPDATE outbox
SET status=$2, attempts=attempts+1, next_attempt_at=$3
WHERE event_id=$1`

const markGaveUpSQL = `
UPDATE outbox
SET status=$2, attempts=attempts+1, next_attempt_at = now()
WHERE event_id=$1
`

const markSentSQL = `UPDATE outbox SET status=$2 WHERE event_id=$1`

const getOutbox = `SELECT event_id, event_type, payload, partition_key, status, attempts, next_attempt_at, inserted_at
FROM outbox WHERE event_id = $1`

const countOutboxByStatus = `SELECT status, count(*) FROM outbox GROUP BY status`
