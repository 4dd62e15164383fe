package appers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrFormat для парсинга строки в pgtype.Numeric
	ErrFormat    = errors.New("invalid decimal format")
	ErrScale     = errors.New("too many fractional digits (max 2)")
	ErrPrecision = errors.New("too many integer digits for NUMERIC(18,2)")
)

type ErrorResp struct {
	StatusCode int    `json:"statusCode,omitempty"`
	StatusDesc string `json:"statusDesc,omitempty"`
}

func (e ErrorResp) Error() string {
	return e.StatusDesc
}

var (
	ErrBookingNotFound = ErrorResp{
		http.StatusNotFound,
		"бронирование не найдено",
	}
	ErrFlightNotFound = ErrorResp{
		http.StatusNotFound,
		"рейс не найден",
	}
	ErrPaymentNotFound = ErrorResp{
		http.StatusNotFound,
		"платёж не найден",
	}
	ErrReservationNotFound = ErrorResp{
		http.StatusNotFound,
		"резерв места не найден",
	}
	ErrInvalidID = ErrorResp{
		StatusCode: http.StatusBadRequest,
		StatusDesc: "идентификатор должен быть положительным целым числом",
	}
)

// Ошибки потока событий
var (
	// ErrDuplicateEvent событие уже есть в inbox сервиса
	ErrDuplicateEvent = errors.New("event already processed")
	// ErrPoisonMessage запись stream не разбирается в событие; такие записи подтверждаются без обработки
	ErrPoisonMessage = errors.New("poison message")
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrOutboxMissing = errors.New("outbox entry not found")
	// ErrStorage хранилище недоступно; consumer делает паузу перед следующим чтением
	ErrStorage = errors.New("storage unavailable")
	// ErrGateway платёжный шлюз не ответил; запись остаётся в pending до reclaim
	ErrGateway = errors.New("payment gateway failure")
)

// WrapStorage помечает ошибку транзакции как ErrStorage. Уже разобранные
// ошибки потока и отмена контекста возвращаются как есть.
func WrapStorage(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStorage),
		errors.Is(err, ErrDuplicateEvent),
		errors.Is(err, ErrPoisonMessage),
		errors.Is(err, ErrGateway),
		errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func SanitizeError(c *fiber.Ctx, err error) error {
	var errResp ErrorResp

	if ok := errors.As(err, &errResp); ok {
		return c.Status(errResp.StatusCode).JSON(fiber.Map{
			"message": errResp.StatusDesc,
		})
	} else {
		return NewErr(c, http.StatusInternalServerError, err)
	}
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
