package producer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/stream"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Producer interface {
	// Publish кладёт запись outbox в stream с ретраями.
	Publish(ctx context.Context, e entity.OutboxEntry) error
	HealthCheck(ctx context.Context) error
}

type StreamProducer struct {
	stream      stream.Stream
	name        string
	logger      *zap.SugaredLogger
	maxAttempts int
	m           *metrics.Metrics
}

func NewProducer(s stream.Stream, name string, logger *zap.SugaredLogger, maxAttempts int, m *metrics.Metrics) *StreamProducer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &StreamProducer{
		stream:      s,
		name:        name,
		logger:      logger,
		maxAttempts: maxAttempts,
		m:           m,
	}
}

// HealthCheck проверяет доступность stream
func (p *StreamProducer) HealthCheck(ctx context.Context) error {
	if p.stream == nil {
		return errors.New("stream is not initialized")
	}
	return p.stream.HealthCheck(ctx)
}

func (p *StreamProducer) Publish(ctx context.Context, e entity.OutboxEntry) error {
	fields := map[string]string{
		stream.FieldEventID:   e.EventID.String(),
		stream.FieldEventType: e.EventType,
		stream.FieldPayload:   string(e.Payload),
	}
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t0 := time.Now()
		entryID, err := p.stream.Publish(ctx, e.PartitionKey, fields)
		rt := time.Since(t0)

		//Metric: attempt latency: ok/error
		if p.m != nil {
			res := "ok"
			if err != nil {
				res = "error"
			}
			p.m.Stream.ProducerAttemptLatencySeconds.WithLabelValues(p.name, res).Observe(rt.Seconds())
		}

		if err == nil {
			if p.m != nil {
				p.m.Stream.ProducerOperationsTotal.WithLabelValues(p.name, "success").Inc()
				p.m.Stream.ProducerSuccessAttempts.WithLabelValues(p.name).Observe(float64(attempt))
			}
			p.logger.Infof("[ID %s] published %s entry=%s key=%s attempt=%d rt=%s",
				e.EventID, e.EventType, entryID, e.PartitionKey, attempt, rt)
			return nil
		}

		lastErr = err

		if IsPermanent(err) {
			if p.m != nil {
				p.m.Stream.ProducerOperationsTotal.WithLabelValues(p.name, "permanent").Inc()
			}
			p.logger.Errorf("[ID %s] permanent stream error attempt=%d rt=%s err=%v", e.EventID, attempt, rt, err)
			return fmt.Errorf("permanent stream error: %w", err)
		}

		p.logger.Warnf("[ID %s] retryable stream error attempt=%d rt=%s kind=%s err=%v",
			e.EventID, attempt, rt, ClassifyRetry(err), err)

		if attempt == p.maxAttempts {
			break
		}

		if err := common.SleepCtx(ctx, common.NextBackoffWithJitter(attempt-1)); err != nil {
			// отмена/таймаут контекста считаем как canceled
			if p.m != nil {
				p.m.Stream.ProducerOperationsTotal.WithLabelValues(p.name, "canceled").Inc()
			}
			return err
		}
	}

	if p.m != nil {
		p.m.Stream.ProducerOperationsTotal.WithLabelValues(p.name, "failed").Inc()
	}
	p.logger.Errorf("[ID %s] publish failed after %d attempts: %v", e.EventID, p.maxAttempts, lastErr)
	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// IsPermanent ошибки, которые повтором не исправить
func IsPermanent(err error) bool {
	if errors.Is(err, stream.ErrClosed) {
		return true
	}
	var k sarama.KError
	if !errors.As(err, &k) {
		return false
	}
	switch k {
	case sarama.ErrTopicAuthorizationFailed,
		sarama.ErrClusterAuthorizationFailed,
		sarama.ErrInvalidRequest,
		sarama.ErrInvalidMessage,
		sarama.ErrMessageSizeTooLarge,
		sarama.ErrSASLAuthenticationFailed:
		return true
	default:
		return false
	}
}

func ClassifyRetry(err error) string {
	var k sarama.KError
	if errors.As(err, &k) {
		switch k {
		case sarama.ErrLeaderNotAvailable:
			return "leader_not_available"
		case sarama.ErrRequestTimedOut:
			return "broker_timeout"
		case sarama.ErrNotEnoughReplicas, sarama.ErrNotEnoughReplicasAfterAppend:
			return "not_enough_replicas"
		default:
			return k.Error()
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "net_timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "client_deadline"
	}
	return "other"
}
