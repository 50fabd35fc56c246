package main

import (
	"log"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/app"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/config"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Build собирает граф зависимостей: хранилища, сервисы, HTTP и gRPC health
	application, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	// Run блокируется до graceful shutdown
	if err := application.Run(); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}
