package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightsaga/internal/appers"
	"flightsaga/internal/application/common"
	"flightsaga/internal/application/entity"
	use_cases "flightsaga/internal/application/use-cases"
	"flightsaga/pkg/config"
	"flightsaga/pkg/metrics"
	"flightsaga/pkg/stream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Результаты обработки записи, они же метки метрики
const (
	resultProcessed    = "processed"
	resultDuplicate    = "duplicate"
	resultPoison       = "poison"
	resultHandlerError = "handler_error"
	resultStorageError = "storage_error"
	resultDead         = "dead"
)

// StreamConsumer долгоживущий цикл чтения stream одним сервисом
type StreamConsumer struct {
	stream   stream.Stream
	usecase  use_cases.UseCaser
	service  string
	group    string
	consumer string
	conf     config.ConsumerConfig
	logger   *zap.SugaredLogger
	m        *metrics.Metrics
	tracer   trace.Tracer

	lastReclaim time.Time
}

func NewStreamConsumer(
	st stream.Stream,
	usecase use_cases.UseCaser,
	service, instance string,
	conf config.ConsumerConfig,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) *StreamConsumer {
	consumer := use_cases.ConsumerName(service)
	if instance != "" {
		consumer += "-" + instance
	}
	if conf.BlockTimeout <= 0 {
		conf.BlockTimeout = time.Second
	}

	return &StreamConsumer{
		stream:   st,
		usecase:  usecase,
		service:  service,
		group:    use_cases.GroupName(service),
		consumer: consumer,
		conf:     conf,
		logger:   logger.With("group", use_cases.GroupName(service), "consumer", consumer),
		m:        m,
		tracer:   otel.Tracer("flightsaga/listener"),
	}
}

func (c *StreamConsumer) Group() string { return c.group }

// Run крутит цикл до отмены ctx. Фатальная ошибка перезапускает цикл после паузы.
func (c *StreamConsumer) Run(ctx context.Context) {
	c.logger.Infof("consumer started for service %s", c.service)

	for {
		err := c.run(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped by context")
			return
		}

		c.logger.Errorf("consumer loop failed, restart in %s: %v", c.conf.RestartBackoff, err)
		if c.m != nil {
			c.m.Stream.ConsumerRestartsTotal.WithLabelValues(c.group).Inc()
		}
		if common.SleepCtx(ctx, c.conf.RestartBackoff) != nil {
			c.logger.Info("consumer stopped by context")
			return
		}
	}
}

func (c *StreamConsumer) run(ctx context.Context) error {
	err := c.stream.EnsureGroup(ctx, c.group)
	switch {
	case errors.Is(err, stream.ErrGroupExists):
		c.logger.Debug("consumer group already exists")
	case err != nil:
		return fmt.Errorf("ensure group: %w", err)
	default:
		c.logger.Info("consumer group created")
	}

	for {
		if err := c.reclaim(ctx); err != nil {
			return err
		}

		msg, err := c.stream.Read(ctx, c.group, c.consumer, c.conf.BlockTimeout)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, stream.ErrNoGroup), errors.Is(err, stream.ErrClosed):
			return fmt.Errorf("read: %w", err)
		case err != nil:
			c.logger.Errorf("read failed: %v", err)
			if err := common.SleepCtx(ctx, c.conf.ErrorPause); err != nil {
				return err
			}
			continue
		case msg != nil:
			c.HandleMessage(ctx, *msg)
		}

		if err := common.SleepCtx(ctx, c.conf.IdlePause); err != nil {
			return err
		}
	}
}

// reclaim переобрабатывает записи, зависшие в pending дольше ReclaimIdle
func (c *StreamConsumer) reclaim(ctx context.Context) error {
	if c.conf.ReclaimIdle <= 0 || time.Since(c.lastReclaim) < c.conf.ReclaimInterval {
		return nil
	}
	c.lastReclaim = time.Now()

	msgs, err := c.stream.Claim(ctx, c.group, c.consumer, c.conf.ReclaimIdle, c.conf.ReclaimCount)
	switch {
	case errors.Is(err, stream.ErrNoGroup), errors.Is(err, stream.ErrClosed):
		return fmt.Errorf("claim: %w", err)
	case err != nil:
		c.logger.Errorf("claim failed: %v", err)
		return nil
	}

	for _, msg := range msgs {
		if c.m != nil {
			c.m.Stream.ConsumerReclaimedTotal.WithLabelValues(c.group).Inc()
		}
		if c.conf.MaxDeliveries > 0 && msg.Deliveries > c.conf.MaxDeliveries {
			c.logger.Errorf("[entry %s] dead after %d deliveries, acking without processing: %v",
				msg.ID, msg.Deliveries, msg.Fields)
			c.ack(ctx, msg.ID, resultDead)
			continue
		}
		c.logger.Warnf("[entry %s] reclaimed, delivery %d", msg.ID, msg.Deliveries)
		c.HandleMessage(ctx, msg)
	}
	return nil
}

// HandleMessage обрабатывает одну запись stream (экспортируем для тестирования)
func (c *StreamConsumer) HandleMessage(ctx context.Context, msg stream.Message) {
	start := time.Now()
	if c.m != nil {
		c.m.Stream.ConsumerInFlight.WithLabelValues(c.group).Inc()
		defer func() {
			c.m.Stream.ConsumerInFlight.WithLabelValues(c.group).Dec()
			c.m.Stream.ConsumerProcessDuration.WithLabelValues(c.group).Observe(time.Since(start).Seconds())
		}()
	}

	ctx, span := c.tracer.Start(ctx, "consume "+c.service,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.consumer.group.name", c.group),
			attribute.String("messaging.message.id", msg.ID),
			attribute.Int("flightsaga.deliveries", msg.Deliveries),
		))
	defer span.End()

	raw, ok := msg.Field(stream.FieldPayload)
	if !ok {
		c.logger.Errorf("[entry %s] payload field is missing: %v", msg.ID, msg.Fields)
		span.SetStatus(codes.Error, "missing payload")
		c.ack(ctx, msg.ID, resultPoison)
		return
	}

	evt, err := entity.ParseEvent([]byte(raw))
	if err != nil {
		c.logger.Errorf("[entry %s] %v", msg.ID, err)
		span.SetStatus(codes.Error, "poison")
		c.ack(ctx, msg.ID, resultPoison)
		return
	}
	span.SetAttributes(
		attribute.String("flightsaga.event_id", evt.ID.String()),
		attribute.String("flightsaga.event_type", evt.Type),
	)

	err = c.usecase.ConsumeEvent(ctx, c.service, evt)
	switch {
	case err == nil:
		c.logger.Debugf("[ID %s] %s processed", evt.ID, evt.Type)
		c.ack(ctx, msg.ID, resultProcessed)
	case errors.Is(err, appers.ErrDuplicateEvent):
		c.logger.Infof("[ID %s] %s already processed, acking", evt.ID, evt.Type)
		c.ack(ctx, msg.ID, resultDuplicate)
	case errors.Is(err, appers.ErrPoisonMessage):
		c.logger.Errorf("[ID %s] %v", evt.ID, err)
		span.SetStatus(codes.Error, "poison")
		c.ack(ctx, msg.ID, resultPoison)
	case errors.Is(err, appers.ErrStorage):
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage")
		c.count(resultStorageError)
		c.logger.Errorf("[ID %s] storage failure, pause %s: %v", evt.ID, c.conf.ErrorPause, err)
		_ = common.SleepCtx(ctx, c.conf.ErrorPause)
	default:
		// запись остаётся в pending; вернётся через reclaim
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
		c.count(resultHandlerError)
		c.logger.Errorf("[ID %s] handler failed, left unacked: %v", evt.ID, err)
	}
}

func (c *StreamConsumer) ack(ctx context.Context, id, result string) {
	c.count(result)
	if err := c.stream.Ack(context.WithoutCancel(ctx), c.group, id); err != nil {
		c.logger.Errorf("[entry %s] ack failed: %v", id, err)
	}
}

func (c *StreamConsumer) count(result string) {
	if c.m != nil {
		c.m.Stream.ConsumerMessagesTotal.WithLabelValues(c.group, result).Inc()
	}
}
