package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"flightsaga/pkg/config"
	"flightsaga/pkg/stream"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaBroker реализует stream.Stream поверх одного топика Kafka.
// Consumer group Kafka = группа stream; неподтверждённые сообщения держатся
// в памяти процесса как pending. Ack коммитит оффсет только когда все более
// ранние сообщения партиции тоже подтверждены.
type KafkaBroker struct {
	Topic        string
	SyncProducer sarama.SyncProducer
	Brokers      []string
	conf         config.Kafka
	logger       *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	groups map[string]*kafkaGroup
	closed bool
}

type kafkaDelivery struct {
	sess sarama.ConsumerGroupSession
	msg  *sarama.ConsumerMessage
}

type kafkaPending struct {
	kafkaDelivery
	consumer    string
	deliveries  int
	deliveredAt time.Time
}

type kafkaGroup struct {
	name       string
	cg         sarama.ConsumerGroup
	deliveries chan kafkaDelivery
	done       chan struct{}

	mu      sync.Mutex
	pending map[string]*kafkaPending
	// подтверждённые, но ещё не закоммиченные сообщения по партициям
	acked map[int32]map[int64]kafkaDelivery
}

func newKafkaGroup(name string, cg sarama.ConsumerGroup) *kafkaGroup {
	return &kafkaGroup{
		name:       name,
		cg:         cg,
		deliveries: make(chan kafkaDelivery),
		done:       make(chan struct{}),
		pending:    make(map[string]*kafkaPending),
		acked:      make(map[int32]map[int64]kafkaDelivery),
	}
}

func NewKafkaBroker(conf config.Kafka, logger *zap.SugaredLogger) (*KafkaBroker, error) {
	logger.Debugf("Создание producer для brokers: %s", conf.Brokers)
	syncProducer, err := newSyncProducer(conf)
	if err != nil {
		logger.Errorf("Ошибка создания producer: %v", err)
		return nil, fmt.Errorf("%w", err)
	}
	logger.Infof("Producer создан успешно")

	ctx, cancel := context.WithCancel(context.Background())
	broker := &KafkaBroker{
		Topic:        conf.Topic,
		SyncProducer: syncProducer,
		Brokers:      strings.Split(conf.Brokers, ","),
		conf:         conf,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		groups:       make(map[string]*kafkaGroup),
	}
	logger.Infof("KafkaBroker создан. Topic: %s", broker.Topic)
	return broker, nil
}

// EnsureGroup создаёт топик (если его нет) и запускает consumer group,
// читающую с самого раннего оффсета.
func (kb *KafkaBroker) EnsureGroup(ctx context.Context, group string) error {
	if err := kb.ensureTopic(); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if kb.closed {
		return stream.ErrClosed
	}
	if _, ok := kb.groups[group]; ok {
		return stream.ErrGroupExists
	}

	cg, err := newConsumerGroup(kb.conf, group)
	if err != nil {
		return err
	}

	g := newKafkaGroup(group, cg)
	kb.groups[group] = g

	go kb.runGroup(g)

	kb.logger.Infof("consumer group %s запущена, topic: %s", group, kb.Topic)
	return nil
}

func (kb *KafkaBroker) ensureTopic() error {
	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 5 * time.Second
	applySASLConfig(cfg, kb.conf, true)

	admin, err := sarama.NewClusterAdmin(kb.Brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka cluster admin: %w", err)
	}
	defer admin.Close()

	partitions := kb.conf.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := kb.conf.Replication
	if replication <= 0 {
		replication = 1
	}

	err = admin.CreateTopic(kb.Topic, &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	}, false)
	if err != nil && !isTopicExists(err) {
		return fmt.Errorf("create topic %s: %w", kb.Topic, err)
	}
	return nil
}

func isTopicExists(err error) bool {
	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) {
		return topicErr.Err == sarama.ErrTopicAlreadyExists
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

func (kb *KafkaBroker) runGroup(g *kafkaGroup) {
	defer close(g.done)
	handler := &groupHandler{group: g, logger: kb.logger}

	for {
		err := g.cg.Consume(kb.ctx, []string{kb.Topic}, handler)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			kb.logger.Errorf("[group %s] ошибка consumer: %v", g.name, err)
		}
		if kb.ctx.Err() != nil {
			kb.logger.Infof("[group %s] consumer остановлен по контексту", g.name)
			return
		}
	}
}

func (kb *KafkaBroker) group(name string) (*kafkaGroup, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return nil, stream.ErrClosed
	}
	g, ok := kb.groups[name]
	if !ok {
		return nil, stream.ErrNoGroup
	}
	return g, nil
}

func (kb *KafkaBroker) Publish(_ context.Context, key string, fields map[string]string) (string, error) {
	msg := &sarama.ProducerMessage{
		Topic:     kb.Topic,
		Timestamp: time.Now(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	for name, v := range fields {
		if name == stream.FieldPayload {
			msg.Value = sarama.StringEncoder(v)
			continue
		}
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(v)})
	}

	part, off, err := kb.SyncProducer.SendMessage(msg)
	if err != nil {
		return "", err
	}
	return entryID(part, off), nil
}

func (kb *KafkaBroker) Read(ctx context.Context, group, consumer string, block time.Duration) (*stream.Message, error) {
	g, err := kb.group(group)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(block)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case <-g.done:
		return nil, stream.ErrClosed
	case d := <-g.deliveries:
		id := entryID(d.msg.Partition, d.msg.Offset)

		g.mu.Lock()
		p, ok := g.pending[id]
		if !ok {
			p = &kafkaPending{kafkaDelivery: d}
			g.pending[id] = p
		}
		// после ребаланса то же сообщение приходит в новой сессии
		p.kafkaDelivery = d
		p.consumer = consumer
		p.deliveries++
		p.deliveredAt = time.Now()
		n := p.deliveries
		g.mu.Unlock()

		msg := toMessage(id, d.msg, n)
		return &msg, nil
	}
}

func (kb *KafkaBroker) Ack(_ context.Context, group string, ids ...string) error {
	g, err := kb.group(group)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	touched := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		p, ok := g.pending[id]
		if !ok {
			continue
		}
		delete(g.pending, id)
		part := p.msg.Partition
		if g.acked[part] == nil {
			g.acked[part] = make(map[int64]kafkaDelivery)
		}
		g.acked[part][p.msg.Offset] = p.kafkaDelivery
		touched[part] = struct{}{}
	}
	for part := range touched {
		g.commitLocked(part)
	}
	return nil
}

// commitLocked помечает самый старший подтверждённый оффсет партиции,
// ниже которого нет pending сообщений. Вызывается под g.mu.
func (g *kafkaGroup) commitLocked(part int32) {
	floor := int64(math.MaxInt64)
	for _, p := range g.pending {
		if p.msg.Partition == part && p.msg.Offset < floor {
			floor = p.msg.Offset
		}
	}

	var last *kafkaDelivery
	for off, d := range g.acked[part] {
		if off >= floor {
			continue
		}
		if last == nil || off > last.msg.Offset {
			d := d
			last = &d
		}
		delete(g.acked[part], off)
	}
	if last != nil {
		last.sess.MarkMessage(last.msg, "")
	}
}

// resetLocked забывает сообщения партиций, которые больше не назначены
// этому участнику группы; подтверждённые без коммита придут снова.
func (g *kafkaGroup) resetLocked(claimed map[int32]bool) {
	for id, p := range g.pending {
		if !claimed[p.msg.Partition] {
			delete(g.pending, id)
		}
	}
	g.acked = make(map[int32]map[int64]kafkaDelivery)
}

func (kb *KafkaBroker) Pending(_ context.Context, group string) ([]stream.PendingEntry, error) {
	g, err := kb.group(group)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	res := make([]stream.PendingEntry, 0, len(g.pending))
	for id, p := range g.pending {
		res = append(res, stream.PendingEntry{ID: id, Consumer: p.consumer, Deliveries: p.deliveries, DeliveredAt: p.deliveredAt})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DeliveredAt.Before(res[j].DeliveredAt) })
	return res, nil
}

func (kb *KafkaBroker) Claim(_ context.Context, group, consumer string, minIdle time.Duration, count int) ([]stream.Message, error) {
	g, err := kb.group(group)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	idle := make([]string, 0)
	for id, p := range g.pending {
		if now.Sub(p.deliveredAt) >= minIdle {
			idle = append(idle, id)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return g.pending[idle[i]].deliveredAt.Before(g.pending[idle[j]].deliveredAt) })
	if count > 0 && len(idle) > count {
		idle = idle[:count]
	}

	res := make([]stream.Message, 0, len(idle))
	for _, id := range idle {
		p := g.pending[id]
		p.consumer = consumer
		p.deliveries++
		p.deliveredAt = now
		res = append(res, toMessage(id, p.msg, p.deliveries))
	}
	return res, nil
}

func entryID(partition int32, offset int64) string {
	return fmt.Sprintf("%d-%d", partition, offset)
}

func toMessage(id string, m *sarama.ConsumerMessage, deliveries int) stream.Message {
	fields := make(map[string]string, len(m.Headers)+1)
	for _, h := range m.Headers {
		if h == nil {
			continue
		}
		fields[string(h.Key)] = string(h.Value)
	}
	if m.Value != nil {
		fields[stream.FieldPayload] = string(m.Value)
	}
	return stream.Message{ID: id, Fields: fields, Deliveries: deliveries}
}

// groupHandler отдаёт сообщения по одному через канал группы;
// следующее сообщение партиции не читается, пока Read не забрал текущее.
type groupHandler struct {
	group  *kafkaGroup
	logger *zap.SugaredLogger
}

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	claims := session.Claims()
	h.logger.Infof("[group %s] kafka setup, claims: %v", h.group.name, claims)

	claimed := make(map[int32]bool)
	for _, parts := range claims {
		for _, part := range parts {
			claimed[part] = true
		}
	}
	h.group.mu.Lock()
	h.group.resetLocked(claimed)
	h.group.mu.Unlock()
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Infof("[group %s] kafka cleanup", h.group.name)
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.logger.Debugf("Message topic:%q partition:%d offset:%d", msg.Topic, msg.Partition, msg.Offset)
			select {
			case h.group.deliveries <- kafkaDelivery{sess: session, msg: msg}:
			case <-session.Context().Done():
				return nil
			}
		}
	}
}

// HealthCheck проверяет доступность Kafka брокера и Producer
//
// Важно: НЕ использует client.Partitions(), так как это требует операции Describe в ACL.
func (kb *KafkaBroker) HealthCheck(ctx context.Context) error {
	if kb.SyncProducer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 2 * time.Second
	cfg.Net.ReadTimeout = 2 * time.Second
	cfg.Net.WriteTimeout = 2 * time.Second
	cfg.Metadata.Timeout = 2 * time.Second
	cfg.Metadata.Retry.Max = 1

	// Применяем те же настройки SASL, что и в producer (приоритет Writer credentials)
	if kb.conf.WriterUsr != "" && kb.conf.WriterUsrPwd != "" {
		applySASLConfig(cfg, kb.conf, true)
	} else {
		applySASLConfig(cfg, kb.conf, false)
	}

	client, err := sarama.NewClient(kb.Brokers, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka brokers: %w", err)
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return fmt.Errorf("no kafka brokers available")
	}

	return ctx.Err()
}

func (kb *KafkaBroker) Close() error {
	kb.mu.Lock()
	if kb.closed {
		kb.mu.Unlock()
		return nil
	}
	kb.closed = true
	groups := make([]*kafkaGroup, 0, len(kb.groups))
	for _, g := range kb.groups {
		groups = append(groups, g)
	}
	kb.mu.Unlock()

	kb.cancel()

	var errs []error
	for _, g := range groups {
		kb.logger.Infof("закрытие consumer group %s", g.name)
		if err := g.cg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close group %s: %w", g.name, err))
		}
		<-g.done
	}
	if err := kb.SyncProducer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	return errors.Join(errs...)
}

// applySASLConfig применяет SASL конфигурацию к sarama.Config
// useWriterCreds: true - использует WriterUsr/WriterUsrPwd, false - ReaderUsr/ReaderUsrPwd
func applySASLConfig(cfg *sarama.Config, conf config.Kafka, useWriterCreds bool) {
	usr, pwd := conf.ReaderUsr, conf.ReaderUsrPwd
	if useWriterCreds {
		usr, pwd = conf.WriterUsr, conf.WriterUsrPwd
	}
	if usr != "" && pwd != "" {
		cfg.Net.SASL.User = usr
		cfg.Net.SASL.Password = pwd
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}
}

func EnableSaramaZapLogs(base *zap.SugaredLogger) {
	logger := base.Named("sarama")
	sarama.Logger = &zapSarama{logger}
	logger.Info("Sarama logger initialized")
}

type zapSarama struct{ l *zap.SugaredLogger }

func (z *zapSarama) Print(v ...interface{})                 { z.l.Debug(v...) }
func (z *zapSarama) Printf(format string, v ...interface{}) { z.l.Debugf(format, v...) }
func (z *zapSarama) Println(v ...interface{})               { z.l.Debug(v...) }

func newConsumerGroup(conf config.Kafka, group string) (sarama.ConsumerGroup, error) {
	kafkaConfig := sarama.NewConfig()
	// новая группа начинает с начала топика
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	kafkaConfig.Consumer.Offsets.AutoCommit.Enable = true
	kafkaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	applySASLConfig(kafkaConfig, conf, false) // используем Reader credentials

	brokers := strings.Split(conf.Brokers, ",")

	consumer, err := sarama.NewConsumerGroup(brokers, group, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Kafka Consumer Group: %w", err)
	}

	return consumer, nil
}

func newSyncProducer(conf config.Kafka) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()

	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 15 * time.Second
	kafkaConfig.Net.WriteTimeout = 15 * time.Second
	kafkaConfig.Net.KeepAlive = 30 * time.Second

	kafkaConfig.Metadata.Timeout = 10 * time.Second
	kafkaConfig.Metadata.Retry.Max = 1
	kafkaConfig.Metadata.Retry.Backoff = 1 * time.Second
	kafkaConfig.Metadata.RefreshFrequency = 1 * time.Minute

	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 0
	kafkaConfig.Producer.Timeout = 10 * time.Second
	// ключ: booking_id, события одного бронирования попадают в одну партицию
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	applySASLConfig(kafkaConfig, conf, true) // используем Writer credentials

	brokers := strings.Split(conf.Brokers, ",")

	producer, err := sarama.NewSyncProducer(brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Kafka Sync Producer: %w", err)
	}

	return producer, nil
}
