package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Health представляет обёртку над стандартным gRPC health service.
// Позволяет управлять статусом readiness для оркестратора (k8s grpc probe).
type Health struct {
	srv *health.Server
}

// New создаёт новый экземпляр Health с указанным начальным статусом.
// Для readiness рекомендуется NOT_SERVING, пока зависимости не проверены.
func New(initialStatus grpc_health_v1.HealthCheckResponse_ServingStatus) *Health {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", initialStatus)
	return &Health{srv: healthServer}
}

// Register регистрирует health service на gRPC сервере.
// Должно вызываться до grpcSrv.Serve.
func (h *Health) Register(grpcSrv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcSrv, h.srv)
}

// SetServing переводит статус в SERVING. Пустое имя сервиса означает весь сервер.
func (h *Health) SetServing(serviceName string) {
	h.srv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing переводит статус в NOT_SERVING (graceful shutdown, потеря БД).
func (h *Health) SetNotServing(serviceName string) {
	h.srv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Watch периодически выполняет check и переключает общий статус сервера.
// Блокируется до отмены ctx, поэтому запускается в отдельной горутине.
func (h *Health) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.apply(ctx, interval, check)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) apply(ctx context.Context, timeout time.Duration, check func(context.Context) error) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := check(checkCtx); err != nil {
		h.SetNotServing("")
		return
	}
	h.SetServing("")
}
