package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"
	use_cases "flightsaga/internal/application/use-cases"
	"flightsaga/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler interface {
	CreateBooking(c *fiber.Ctx) error
	ListBookings(c *fiber.Ctx) error
	GetBooking(c *fiber.Ctx) error
	RequestFlightCreation(c *fiber.Ctx) error
	RequestPayment(c *fiber.Ctx) error

	CreateFlight(c *fiber.Ctx) error
	ListFlights(c *fiber.Ctx) error
	GetFlight(c *fiber.Ctx) error

	GetPayment(c *fiber.Ctx) error

	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
	service string
}

func NewHandler(usecase use_cases.UseCaser, logger *zap.SugaredLogger, service string) *HandlerImpl {
	return &HandlerImpl{
		usecase: usecase,
		logger:  logger,
		service: service,
	}
}

// formatValidationErrors форматирует ошибки валидации в понятный формат для клиента
func formatValidationErrors(err error) fiber.Map {
	var details []string
	var validationErrors playgroundvalidator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			var message string
			switch e.Tag() {
			case "required":
				message = fmt.Sprintf("поле '%s' обязательно для заполнения", field)
			case "min":
				message = fmt.Sprintf("поле '%s' должно содержать минимум %s символов", field, e.Param())
			case "max":
				message = fmt.Sprintf("поле '%s' не должно превышать %s", field, e.Param())
			case "gt":
				message = fmt.Sprintf("поле '%s' должно быть больше %s", field, e.Param())
			case "seat":
				message = fmt.Sprintf("поле '%s' должно быть номером места (например, 12A)", field)
			default:
				message = fmt.Sprintf("поле '%s' не прошло валидацию: %s", field, e.Tag())
			}
			details = append(details, message)
		}
	} else {
		details = append(details, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": details,
	}
}

// parseBody читает тело и валидирует его; при ошибке ответ уже записан
func (h *HandlerImpl) parseBody(c *fiber.Ctx, v any) (bool, error) {
	if err := c.BodyParser(v); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validator.Validate.Struct(v); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return false, c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}
	return true, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, appers.ErrInvalidID
	}
	return int64(id), nil
}

// HealthCheck godoc
// @Summary     Проверка состояния сервиса
// @Description Проверяет доступность хранилища и stream. Возвращает детальную информацию о состоянии каждого компонента.
// @Produce     json
// @Success     200   {object} entity.HealthCheckResponse "Все компоненты доступны"
// @Failure     503   {object} entity.HealthCheckResponse "Один или несколько компонентов недоступны"
// @tags        Health
// @Router      /health [get]
func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	dbHealthy, streamHealthy, _ := h.usecase.HealthCheck(ctx)

	resp := entity.HealthCheckResponse{
		Status:  dbHealthy && streamHealthy,
		Message: "success",
		Version: common.Version,
		Service: h.service,
		Checks: entity.HealthCheckResponseData{
			Database: entity.HealthCheckItem{Status: dbHealthy, Type: "database"},
			Stream:   entity.HealthCheckItem{Status: streamHealthy, Type: "stream"},
		},
	}
	if !dbHealthy {
		resp.Checks.Database.Error = "Database connection failed"
		resp.Message = "Some services are unavailable"
	}
	if !streamHealthy {
		resp.Checks.Stream.Error = "Stream connection failed"
		resp.Message = "Some services are unavailable"
	}

	if !resp.Status {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// CreateBooking godoc
// @Summary     Создание бронирования
// @Description Создаёт бронирование в статусе PENDING и публикует BookingRequested
// @Accept      json
// @Produce     json
// @Param       body  body     entity.BookingRequest  true  "Данные бронирования"
// @Success     201   {object} entity.BookingCreatedResponse
// @Failure     400
// @Failure     500
// @tags        Booking
// @Router      /v1/bookings [post]
func (h *HandlerImpl) CreateBooking(c *fiber.Ctx) error {
	var req entity.BookingRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	resp, err := h.usecase.CreateBooking(c.UserContext(), req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListBookings godoc
// @Summary     Список бронирований
// @Produce     json
// @Success     200   {array}  entity.Booking
// @Failure     500
// @tags        Booking
// @Router      /v1/bookings [get]
func (h *HandlerImpl) ListBookings(c *fiber.Ctx) error {
	bookings, err := h.usecase.ListBookings(c.UserContext())
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if bookings == nil {
		bookings = []*entity.Booking{}
	}
	return c.Status(fiber.StatusOK).JSON(bookings)
}

// GetBooking godoc
// @Summary     Бронирование по идентификатору
// @Produce     json
// @Param       id   path     int  true  "ID бронирования"
// @Success     200  {object} entity.Booking
// @Failure     400
// @Failure     404
// @tags        Booking
// @Router      /v1/bookings/{id} [get]
func (h *HandlerImpl) GetBooking(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	booking, err := h.usecase.GetBooking(c.UserContext(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(booking)
}

// RequestFlightCreation godoc
// @Summary     Запрос на создание рейса
// @Description Публикует FlightCreationRequested; рейс создаёт сервис Flight
// @Accept      json
// @Produce     json
// @Param       body  body     entity.FlightCreateRequest  true  "Количество мест"
// @Success     202
// @Failure     400
// @Failure     500
// @tags        Booking
// @Router      /v1/flights/requests [post]
func (h *HandlerImpl) RequestFlightCreation(c *fiber.Ctx) error {
	var req entity.FlightCreateRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	eventID, err := h.usecase.RequestFlightCreation(c.UserContext(), req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":   "REQUESTED",
		"event_id": eventID.String(),
	})
}

// RequestPayment godoc
// @Summary     Запрос оплаты бронирования
// @Description Публикует BookingRequestedForPayment с суммой по цене места
// @Produce     json
// @Param       booking_id   path     int  true  "ID бронирования"
// @Success     202  {object} entity.PaymentRequestedResponse
// @Failure     400
// @Failure     404
// @Failure     500
// @tags        Booking
// @Router      /v1/payments/{booking_id}/requests [post]
func (h *HandlerImpl) RequestPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "booking_id")
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	resp, err := h.usecase.RequestPayment(c.UserContext(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// CreateFlight godoc
// @Summary     Создание рейса
// @Accept      json
// @Produce     json
// @Param       body  body     entity.FlightCreateRequest  true  "Количество мест"
// @Success     201   {object} entity.Flight
// @Failure     400
// @Failure     500
// @tags        Flight
// @Router      /v1/flights [post]
func (h *HandlerImpl) CreateFlight(c *fiber.Ctx) error {
	var req entity.FlightCreateRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	flight, err := h.usecase.CreateFlight(c.UserContext(), req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(flight)
}

// ListFlights godoc
// @Summary     Список рейсов
// @Produce     json
// @Success     200   {array}  entity.Flight
// @Failure     500
// @tags        Flight
// @Router      /v1/flights [get]
func (h *HandlerImpl) ListFlights(c *fiber.Ctx) error {
	flights, err := h.usecase.ListFlights(c.UserContext())
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if flights == nil {
		flights = []*entity.Flight{}
	}
	return c.Status(fiber.StatusOK).JSON(flights)
}

// GetFlight godoc
// @Summary     Рейс по идентификатору
// @Produce     json
// @Param       id   path     int  true  "ID рейса"
// @Success     200  {object} entity.Flight
// @Failure     400
// @Failure     404
// @tags        Flight
// @Router      /v1/flights/{id} [get]
func (h *HandlerImpl) GetFlight(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	flight, err := h.usecase.GetFlight(c.UserContext(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flight)
}

// GetPayment godoc
// @Summary     Платёж по бронированию
// @Produce     json
// @Param       booking_id   path     int  true  "ID бронирования"
// @Success     200  {object} entity.Payment
// @Failure     400
// @Failure     404
// @tags        Payment
// @Router      /v1/payments/{booking_id} [get]
func (h *HandlerImpl) GetPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "booking_id")
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	payment, err := h.usecase.GetPayment(c.UserContext(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(payment)
}
