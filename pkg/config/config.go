package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ServiceBooking = "booking"
	ServiceFlight  = "flight"
	ServicePayment = "payment"
	ServiceAll     = "all"

	DriverPostgres = "postgres"
	DriverKafka    = "kafka"
	DriverMemory   = "memory"
)

type Config struct {
	Service      Service        `mapstructure:"service"`
	Server       Server         `mapstructure:"server"`
	Postgres     Postgres       `mapstructure:"postgres"`
	Storage      Storage        `mapstructure:"storage"`
	Broker       Broker         `mapstructure:"broker"`
	Consumer     ConsumerConfig `mapstructure:"consumer"`
	Cron         Cron           `mapstructure:"cron"`
	Realay       RelayConfig    `mapstructure:"relay"`
	Saga         Saga           `mapstructure:"saga"`
	Payment      Payment        `mapstructure:"payment"`
	Notifier     Notifier       `mapstructure:"notifier"`
	Tracing      Tracing        `mapstructure:"tracing"`
	HTTPClient   HTTPClient     `mapstructure:"httpClient"`
	LoggingLevel string         `mapstructure:"logging-level"`
}

type Service struct {
	Name     string `mapstructure:"name"`     // booking | flight | payment | all
	Instance string `mapstructure:"instance"` // consumer name inside the group
}

// Services раскрывает "all" в список сервисов, запускаемых в одном процессе
func (s Service) Services() []string {
	if strings.EqualFold(s.Name, ServiceAll) {
		return []string{ServiceBooking, ServiceFlight, ServicePayment}
	}
	return []string{strings.ToLower(s.Name)}
}

type Server struct {
	Port          string `mapstructure:"port"`
	SwaggerUrl    string `mapstructure:"swagger_json"`
	SwaggerHost   string `mapstructure:"swagger_host"`
	SwaggerSchema string `mapstructure:"swagger_schema"`
	BodyLimit     int    `mapstructure:"body_limit"`
}

type Postgres struct {
	ConnString     string `mapstructure:"conn_string"`
	MaxConnections int32  `mapstructure:"max_connections"`
	MigrationsDir  string `mapstructure:"migrations_dir"`
}

type Storage struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

type Broker struct {
	Driver string `mapstructure:"driver"` // kafka | memory
	Kafka  Kafka  `mapstructure:"kafka"`
}

type Kafka struct {
	Brokers      string `mapstructure:"brokers"`
	Topic        string `mapstructure:"topic"`
	Partitions   int32  `mapstructure:"partitions"`
	Replication  int16  `mapstructure:"replication"`
	ReaderUsr    string `mapstructure:"readerUsr"`
	ReaderUsrPwd string `mapstructure:"readerUsrPwd"`
	WriterUsr    string `mapstructure:"writerUsr"`
	WriterUsrPwd string `mapstructure:"writerUsrPwd"`
	MaxAttempts  int    `mapstructure:"maxAttempts"`
}

type ConsumerConfig struct {
	BlockTimeout   time.Duration `mapstructure:"blockTimeout"`   // ожидание одного сообщения
	IdlePause      time.Duration `mapstructure:"idlePause"`      // пауза между раундами
	ErrorPause     time.Duration `mapstructure:"errorPause"`     // пауза после ошибки хранилища
	RestartBackoff time.Duration `mapstructure:"restartBackoff"` // перезапуск цикла после фатальной ошибки
	// Reclaim: 0: зависшие pending сообщения не переобрабатываются
	ReclaimIdle     time.Duration `mapstructure:"reclaimIdle"`
	ReclaimInterval time.Duration `mapstructure:"reclaimInterval"`
	ReclaimCount    int           `mapstructure:"reclaimCount"`
	MaxDeliveries   int           `mapstructure:"maxDeliveries"`
}

type Cron struct {
	PendingMonitor string `mapstructure:"pendingMonitor"` // cron выражение или "@every 30s"
}

type RelayConfig struct {
	Workers     int           `mapstructure:"workers"`
	BatchSize   int           `mapstructure:"batchSize"`
	Lease       time.Duration `mapstructure:"lease"`
	PollPeriod  time.Duration `mapstructure:"pollPeriod"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
}

type Saga struct {
	SeatPrice float64 `mapstructure:"seatPrice"`
}

type Payment struct {
	GatewayURL string `mapstructure:"gatewayURL"` // пусто: детерминированная заглушка
}

type Notifier struct {
	RabbitURL string `mapstructure:"rabbitURL"`
	Exchange  string `mapstructure:"exchange"`
}

type Tracing struct {
	Endpoint string `mapstructure:"endpoint"`
}

type HTTPClient struct {
	//конфиг клиента
	ConnectTimeout        time.Duration `mapstructure:"connectTimeout"`        // TCP коннект
	TLSHandshakeTimeout   time.Duration `mapstructure:"TLSHandshakeTimeout"`   // TLS рукопожатие
	ResponseHeaderTimeout time.Duration `mapstructure:"responseHeaderTimeout"` // ожидание заголовков ответа
	ExpectContinueTimeout time.Duration `mapstructure:"expectContinueTimeout"` // 100-continue

	// Пул соединений
	IdleConnTimeout     time.Duration `mapstructure:"idleConnTimeout"`
	MaxIdleConns        int           `mapstructure:"maxIdleConns"`
	MaxIdleConnsPerHost int           `mapstructure:"maxIdleConnsPerHost"`
	MaxConnsPerHost     int           `mapstructure:"maxConnsPerHost"`
	KeepAlives          bool          `mapstructure:"keepAlives"`

	// Общий таймаут клиента. 0: контролируем дедлайном через context.
	ClientTimeout time.Duration `mapstructure:"clientTimeout"`

	UserAgent  string `mapstructure:"userAgent"`
	MaxRetries int    `mapstructure:"maxRetries"`

	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify"`
}

func NewConfig() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Настраиваем замену точек и дефисов на подчеркивания для переменных окружения
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// без дефолтов AutomaticEnv не видит вложенные ключи при Unmarshal
	SetDefaults(v)

	var conf Config
	err := v.ReadInConfig()
	if err != nil {
		// Если это не ошибка "файл не найден", возвращаем её
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return conf, err
		}
	}

	err = v.Unmarshal(&conf)

	return conf, err
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging-level", "info")

	v.SetDefault("service.name", ServiceAll)
	v.SetDefault("service.instance", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.swagger_json", "/flightsaga/swagger/doc.json")
	v.SetDefault("server.swagger_host", "localhost:8080")
	v.SetDefault("server.swagger_schema", "http")
	v.SetDefault("server.body_limit", 4*1024*1024)

	v.SetDefault("postgres.conn_string", "")
	v.SetDefault("postgres.max_connections", 5)
	v.SetDefault("postgres.migrations_dir", "resources/migrations")

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("broker.driver", DriverKafka)
	v.SetDefault("broker.kafka.brokers", "localhost:9092")
	v.SetDefault("broker.kafka.topic", "booking_stream")
	v.SetDefault("broker.kafka.partitions", 3)
	v.SetDefault("broker.kafka.replication", 1)
	v.SetDefault("broker.kafka.readerUsr", "")
	v.SetDefault("broker.kafka.readerUsrPwd", "")
	v.SetDefault("broker.kafka.writerUsr", "")
	v.SetDefault("broker.kafka.writerUsrPwd", "")
	v.SetDefault("broker.kafka.maxAttempts", 3)

	v.SetDefault("consumer.blockTimeout", time.Second)
	v.SetDefault("consumer.idlePause", 100*time.Millisecond)
	v.SetDefault("consumer.errorPause", time.Second)
	v.SetDefault("consumer.restartBackoff", 5*time.Second)
	v.SetDefault("consumer.reclaimIdle", 30*time.Second)
	v.SetDefault("consumer.reclaimInterval", 10*time.Second)
	v.SetDefault("consumer.reclaimCount", 10)
	v.SetDefault("consumer.maxDeliveries", 5)

	v.SetDefault("cron.pendingMonitor", "@every 30s")

	v.SetDefault("relay.workers", 2)
	v.SetDefault("relay.batchSize", 50)
	v.SetDefault("relay.lease", 30*time.Second)
	v.SetDefault("relay.pollPeriod", 2*time.Second)
	v.SetDefault("relay.maxAttempts", 10)

	v.SetDefault("saga.seatPrice", 100.0)
	v.SetDefault("payment.gatewayURL", "")

	v.SetDefault("notifier.rabbitURL", "")
	v.SetDefault("notifier.exchange", "booking.exchange")

	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("httpClient.connectTimeout", 3*time.Second)
	v.SetDefault("httpClient.TLSHandshakeTimeout", 3*time.Second)
	v.SetDefault("httpClient.responseHeaderTimeout", 10*time.Second)
	v.SetDefault("httpClient.expectContinueTimeout", time.Second)
	v.SetDefault("httpClient.idleConnTimeout", 90*time.Second)
	v.SetDefault("httpClient.maxIdleConns", 100)
	v.SetDefault("httpClient.maxIdleConnsPerHost", 10)
	v.SetDefault("httpClient.maxConnsPerHost", 0)
	v.SetDefault("httpClient.keepAlives", true)
	v.SetDefault("httpClient.clientTimeout", 0)
	v.SetDefault("httpClient.userAgent", "flightsaga-payment")
	v.SetDefault("httpClient.maxRetries", 3)
	v.SetDefault("httpClient.insecureSkipVerify", false)
}
