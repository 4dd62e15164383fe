package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flightsaga/pkg/config"
	"flightsaga/pkg/httpserver"
	"flightsaga/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const api = "/flightsaga/api/v1"

func memoryConfig() *config.Config {
	return &config.Config{
		Service: config.Service{Name: config.ServiceAll},
		Server:  config.Server{SwaggerUrl: "/flightsaga/swagger/doc.json"},
		Storage: config.Storage{Driver: config.DriverMemory},
		Broker:  config.Broker{Driver: config.DriverMemory, Kafka: config.Kafka{MaxAttempts: 3}},
		Consumer: config.ConsumerConfig{
			BlockTimeout:   20 * time.Millisecond,
			IdlePause:      time.Millisecond,
			ErrorPause:     10 * time.Millisecond,
			RestartBackoff: 10 * time.Millisecond,
		},
		Cron:   config.Cron{PendingMonitor: "@every 1s"},
		Realay: config.RelayConfig{Workers: 1, BatchSize: 10, Lease: time.Minute, PollPeriod: 50 * time.Millisecond, MaxAttempts: 3},
		Saga:   config.Saga{SeatPrice: 100},
	}
}

func startApp(t *testing.T, conf *config.Config) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := metrics.New(prometheus.NewRegistry())

	app, err := NewApp(ctx, conf, zaptest.NewLogger(t).Sugar(), httpserver.NewFiber(*conf, m), m)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = app.Shutdown()
	})
	return app
}

func call(t *testing.T, app *App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.httpServer.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func bookingStatus(t *testing.T, app *App, id int64) string {
	_, body := call(t, app, http.MethodGet, fmt.Sprintf("%s/bookings/%d", api, id), "")
	s, _ := body["status"].(string)
	return s
}

func createBooking(t *testing.T, app *App, flightID int64, seat string) int64 {
	t.Helper()
	status, body := call(t, app, http.MethodPost, api+"/bookings",
		fmt.Sprintf(`{"flight_id":%d,"user_id":"user-1","seat_number":%q}`, flightID, seat))
	require.Equal(t, http.StatusCreated, status)
	return int64(body["booking_id"].(float64))
}

func TestSagaConfirmsAndCompensates(t *testing.T) {
	app := startApp(t, memoryConfig())

	status, body := call(t, app, http.MethodPost, api+"/flights", `{"total_seats":1}`)
	require.Equal(t, http.StatusCreated, status)
	flightID := int64(body["flight_id"].(float64))

	first := createBooking(t, app, flightID, "1A")
	require.Eventually(t, func() bool {
		return bookingStatus(t, app, first) == "CONFIRMED"
	}, 5*time.Second, 20*time.Millisecond)

	status, body = call(t, app, http.MethodGet, fmt.Sprintf("%s/payments/%d", api, first), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", body["status"])
	assert.Equal(t, "100.00", body["amount"])

	// мест больше нет: второе бронирование проваливается
	second := createBooking(t, app, flightID, "1B")
	require.Eventually(t, func() bool {
		return bookingStatus(t, app, second) == "FAILED"
	}, 5*time.Second, 20*time.Millisecond)

	_, body = call(t, app, http.MethodGet, fmt.Sprintf("%s/flights/%d", api, flightID), "")
	assert.EqualValues(t, 0, body["available_seats"])
	assert.EqualValues(t, 1, body["total_seats"])

	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("%s/payments/%d", api, second), "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFlightCreationThroughStream(t *testing.T) {
	app := startApp(t, memoryConfig())

	status, body := call(t, app, http.MethodPost, api+"/flights/requests", `{"total_seats":5}`)
	require.Equal(t, http.StatusAccepted, status)
	assert.NotEmpty(t, body["event_id"])

	require.Eventually(t, func() bool {
		_, body := call(t, app, http.MethodGet, api+"/flights/1", "")
		return body["total_seats"] == float64(5)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHealthWithMemoryDrivers(t *testing.T) {
	app := startApp(t, memoryConfig())

	status, body := call(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["status"])
}

func TestUnknownDrivers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	logger := zaptest.NewLogger(t).Sugar()

	conf := memoryConfig()
	conf.Storage.Driver = "sqlite"
	_, err := NewApp(context.Background(), conf, logger, httpserver.NewFiber(*conf, m), m)
	assert.ErrorContains(t, err, "unknown storage driver")

	conf = memoryConfig()
	conf.Broker.Driver = "nats"
	_, err = NewApp(context.Background(), conf, logger, httpserver.NewFiber(*conf, m), m)
	assert.ErrorContains(t, err, "unknown broker driver")
}
