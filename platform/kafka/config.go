package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Config содержит конфигурацию для подключения к Kafka
type Config struct {
	// Brokers: список брокеров Kafka:
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	// Несколько брокеров через запятую: "broker1:9092,broker2:9092"
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// OrderEventsTopic топик доменных событий заказов (order.paid, order.cancelled)
	OrderEventsTopic string `env:"KAFKA_ORDER_EVENTS_TOPIC" envDefault:"fulfillment.order-events"`
	// WriteTimeout ограничивает одну запись в Kafka
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig возвращает конфигурацию для локальной разработки
func DefaultConfig() Config {
	return Config{
		Brokers:          []string{"localhost:19092"},
		OrderEventsTopic: "fulfillment.order-events",
		WriteTimeout:     10 * time.Second,
	}
}

// NewWriter создаёт kafka.Writer без привязки к топику: топик задаётся в каждом сообщении
// (outbox хранит топик в строке события).
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
