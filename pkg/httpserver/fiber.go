package httpserver

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"flightsaga/pkg/config"
	"flightsaga/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewFiber(conf config.Config, m *metrics.Metrics) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:        "flightsaga " + conf.Service.Name,
			ReadBufferSize: 1024 * 100,
			BodyLimit:      conf.Server.BodyLimit,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var fe *fiber.Error
				if errors.As(err, &fe) {
					code = fe.Code
				}
				return c.Status(code).JSON(fiber.Map{
					"status":  false,
					"message": err.Error(),
				})
			},
		},
	)

	app.Use(
		cors.New(cors.Config{
			AllowOrigins:  "*", // Разрешаем все источники по умолчанию
			ExposeHeaders: "Authorization",
		}),
		recover.New(recover.Config{
			EnableStackTrace: true,
		}),
		logger.New(logger.Config{
			Next: func(c *fiber.Ctx) bool {
				// без /health и /metrics
				return c.Path() == "/health" || c.Path() == "/metrics"
			},
		}),
	)

	// Prometheus middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Получаем путь из роута, если доступен, иначе используем фактический путь
		path := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			path = r.Path
		}

		// Получаем метод из роута, если доступен, иначе из заголовка запроса
		method := strings.ToUpper(c.Method())
		if r := c.Route(); r != nil && r.Method != "" {
			method = strings.ToUpper(r.Method)
		}

		// Нормализуем метод
		method = normalizeHTTPMethod(method)

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		statusStr := strconv.Itoa(status)
		m.API.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.API.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())
		return err
	})

	return app
}

// normalizeHTTPMethod ограничивает метку метода стандартными методами
func normalizeHTTPMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))

	// Стандартные HTTP методы
	validMethods := map[string]string{
		"GET":     "GET",
		"POST":    "POST",
		"PUT":     "PUT",
		"DELETE":  "DELETE",
		"PATCH":   "PATCH",
		"HEAD":    "HEAD",
		"OPTIONS": "OPTIONS",
		"TRACE":   "TRACE",
		"CONNECT": "CONNECT",
	}

	if normalized, ok := validMethods[method]; ok {
		return normalized
	}

	// прочие методы сводятся в одну метку
	return "OTHER"
}
