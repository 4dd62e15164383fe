package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"flightsaga/pkg/config"
)

type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client http.Client с настроенным пулом и заголовками по умолчанию
type Client struct {
	http    *http.Client
	tr      *http.Transport
	headers http.Header
}

func NewClient(cfg config.HTTPClient) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		DisableKeepAlives:     !cfg.KeepAlives,
		ForceAttemptHTTP2:     true,
	}

	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:    &http.Client{Transport: tr, Timeout: cfg.ClientTimeout},
		tr:      tr,
		headers: headers,
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req = req.WithContext(ctx)
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
	return c.http.Do(req)
}

func (c *Client) CloseIdle() { c.tr.CloseIdleConnections() }

// Std отдаёт нижележащий *http.Client (нужен для подмены транспорта в тестах).
func (c *Client) Std() *http.Client { return c.http }
