package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"flightsaga/internal/application/common"

	"go.uber.org/zap"
)

// IdempotencyKeyHeader делает POST безопасным для повтора
const IdempotencyKeyHeader = "Idempotency-Key"

type RetryClient struct {
	delegate   HTTPClient
	maxRetries int
	// ShouldRetry решает по ответу/ошибке; метод запроса проверяется отдельно
	ShouldRetry func(*http.Response, error) bool
	// Backoff пауза перед попыткой attempt
	Backoff func(attempt int) time.Duration
	// MaxRetryAfter потолок для заголовка Retry-After
	MaxRetryAfter time.Duration
	logger        *zap.SugaredLogger
}

func NewRetryClient(delegate HTTPClient, maxRetries int, logger *zap.SugaredLogger) *RetryClient {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &RetryClient{
		delegate:      delegate,
		maxRetries:    maxRetries,
		ShouldRetry:   retryableResponse,
		Backoff:       common.NextBackoffWithJitter,
		MaxRetryAfter: 5 * time.Second,
		logger:        logger,
	}
}

func retryableResponse(resp *http.Response, err error) bool {
	// не ретраим явную отмену/дедлайн
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return true
	}
	// 5xx и 429: кандидаты на повтор
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// replayable: идемпотентный метод или запрос с ключом идемпотентности
func replayable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return req.Header.Get(IdempotencyKeyHeader) != ""
}

func (c *RetryClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !replayable(req) {
		return c.delegate.Do(ctx, req)
	}

	// тело читаем один раз и отдаём копию каждой попытке
	if req.Body != nil && req.GetBody == nil {
		buf, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		req.ContentLength = int64(len(buf))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	}

	for attempt := 1; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := c.delegate.Do(ctx, r)
		if attempt >= c.maxRetries || !c.ShouldRetry(resp, err) {
			return resp, err
		}

		wait := c.wait(attempt, resp)
		status := 0
		if resp != nil {
			status = resp.StatusCode
			// соединение возвращается в пул
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		c.logger.Warnf("retry attempt=%d wait=%s %s %s status=%d err=%v",
			attempt, wait, req.Method, req.URL.Redacted(), status, err)

		if err := common.SleepCtx(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry sleep canceled: %w", err)
		}
	}
}

// wait учитывает Retry-After в секундах, иначе backoff с jitter
func (c *RetryClient) wait(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s >= 0 {
			d := time.Duration(s) * time.Second
			if c.MaxRetryAfter > 0 && d > c.MaxRetryAfter {
				d = c.MaxRetryAfter
			}
			return d
		}
	}
	if d := c.Backoff(attempt); d > 0 {
		return d
	}
	return 100 * time.Millisecond
}
