package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"flightsaga/pkg/httpclient"
)

// PaymentGateway списывает сумму за бронирование. false без ошибки означает отказ шлюза.
type PaymentGateway interface {
	Charge(ctx context.Context, bookingID int64, amount float64) (bool, error)
}

// StubGateway всегда одобряет списание
type StubGateway struct{}

func (StubGateway) Charge(context.Context, int64, float64) (bool, error) { return true, nil }

type chargeRequest struct {
	BookingID int64  `json:"booking_id"`
	Amount    string `json:"amount"`
}

type chargeResponse struct {
	Approved bool `json:"approved"`
}

// HTTPGateway внешний платёжный шлюз: POST {url}/charges.
// 402 и 422 считаются отказом, прочие не-2xx ошибкой.
type HTTPGateway struct {
	client httpclient.HTTPClient
	url    string
}

func NewHTTPGateway(client httpclient.HTTPClient, url string) *HTTPGateway {
	return &HTTPGateway{client: client, url: url}
}

func (g *HTTPGateway) Charge(ctx context.Context, bookingID int64, amount float64) (bool, error) {
	body, err := json.Marshal(chargeRequest{BookingID: bookingID, Amount: strconv.FormatFloat(amount, 'f', 2, 64)})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/charges", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "booking-"+strconv.FormatInt(bookingID, 10))

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return false, fmt.Errorf("charge booking %d: %w", bookingID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("charge booking %d: gateway status %d", bookingID, resp.StatusCode)
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode charge response: %w", err)
	}
	return out.Approved, nil
}
