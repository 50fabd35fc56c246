package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Func освобождает один ресурс. ctx ограничен таймаутом менеджера
type Func func(context.Context) error

type step struct {
	name string
	fn   Func
}

// Manager выполняет зарегистрированные шаги остановки в обратном порядке (LIFO).
// Повторный вызов Shutdown ничего не делает
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	steps []step
	once  sync.Once
	err   error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

// Add регистрирует шаг. Ресурс, открытый позже, закрывается раньше
func (m *Manager) Add(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Wait ждёт SIGINT/SIGTERM или отмены parent и выполняет Shutdown
func (m *Manager) Wait(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	m.logger.Info("Shutdown requested")
	return m.Shutdown()
}

// Shutdown выполняет шаги, ошибка одного шага не прерывает остальные.
// Возвращает объединённые ошибки всех шагов
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.mu.Lock()
		steps := append([]step(nil), m.steps...)
		m.mu.Unlock()

		var errs []error
		for i := len(steps) - 1; i >= 0; i-- {
			if err := m.run(steps[i]); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", steps[i].name, err))
			}
		}
		m.err = errors.Join(errs...)
		m.logger.Info("Shutdown finished", zap.Int("steps", len(steps)), zap.Int("failed", len(errs)))
	})
	return m.err
}

func (m *Manager) run(s step) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	err := s.fn(ctx)
	if err != nil {
		m.logger.Error("Shutdown step failed", zap.String("step", s.name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	m.logger.Debug("Shutdown step done", zap.String("step", s.name), zap.Duration("took", time.Since(start)))
	return nil
}

// HTTPServer останавливает http.Server, дожидаясь активных запросов
func HTTPServer(srv interface{ Shutdown(context.Context) error }) Func {
	return srv.Shutdown
}

// GRPCServer делает GracefulStop, а по истечении ctx принудительный Stop
func GRPCServer(srv interface {
	GracefulStop()
	Stop()
}) Func {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return errors.New("grpc graceful stop timed out")
		}
	}
}

// Disconnect для клиентов с Disconnect(ctx) (mongo)
func Disconnect(c interface{ Disconnect(context.Context) error }) Func {
	return c.Disconnect
}

// Release для ресурсов с Close() без ошибки (pgxpool)
func Release(r interface{ Close() }) Func {
	return func(context.Context) error {
		r.Close()
		return nil
	}
}

// Close для io.Closer (redis, kafka writer)
func Close(c io.Closer) Func {
	return func(context.Context) error {
		return c.Close()
	}
}

// Cancel отменяет фоновые задачи
func Cancel(cancel context.CancelFunc) Func {
	return func(context.Context) error {
		cancel()
		return nil
	}
}

// NotServing снимает readiness до остановки серверов
func NotServing(h interface{ SetNotServing(string) }) Func {
	return func(context.Context) error {
		h.SetNotServing("")
		return nil
	}
}
