package kafka

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// LoadEnv загружает конфигурацию из переменных окружения поверх значений cfg.
// Использует caarlos0/env/v10 для парсинга env-тегов
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse kafka env: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.OrderEventsTopic == "" {
		return fmt.Errorf("KAFKA_ORDER_EVENTS_TOPIC is required")
	}
	return nil
}
