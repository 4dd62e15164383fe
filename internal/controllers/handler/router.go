package handler

import (
	"flightsaga/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Router struct {
	handler Handler
	app     *fiber.App
	conf    *config.Config
	logger  *zap.SugaredLogger
}

func NewRouter(handler Handler, app *fiber.App, conf *config.Config, logger *zap.SugaredLogger) *Router {
	return &Router{
		logger:  logger,
		app:     app,
		conf:    conf,
		handler: handler,
	}
}

func (r *Router) RegisterRouter() {
	r.app.Get("/health", r.handler.HealthCheck)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	r.app.Route("/flightsaga", func(router fiber.Router) {

		router.Use("/swagger/*", swagger.New(swagger.Config{
			DeepLinking: false,
			URL:         r.conf.Server.SwaggerUrl,
		}))

		v1 := router.Group("/api").Group("/v1")

		// в процессе регистрируются только маршруты запущенных сервисов
		for _, s := range r.conf.Service.Services() {
			switch s {
			case config.ServiceBooking:
				v1.Post("/bookings", r.handler.CreateBooking)
				v1.Get("/bookings", r.handler.ListBookings)
				v1.Get("/bookings/:id", r.handler.GetBooking)
				v1.Post("/flights/requests", r.handler.RequestFlightCreation)
				v1.Post("/payments/:booking_id/requests", r.handler.RequestPayment)
			case config.ServiceFlight:
				v1.Post("/flights", r.handler.CreateFlight)
				v1.Get("/flights", r.handler.ListFlights)
				v1.Get("/flights/:id", r.handler.GetFlight)
			case config.ServicePayment:
				v1.Get("/payments/:booking_id", r.handler.GetPayment)
			default:
				r.logger.Warnf("unknown service %q, no routes registered", s)
			}
		}
	})
}
