package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check описывает одну зависимость, от которой зависит readiness сервиса (postgres, mongo, redis)
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// CheckTimeout ограничивает время одной проверки
const CheckTimeout = 2 * time.Second

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler возвращает HTTP handler для health check endpoint.
// Без проверок всегда отвечает 200 {"status":"ok"}.
// Если хотя бы одна проверка вернула ошибку, отвечаем 503 и статус "not ready",
// в поле checks видно, какая именно зависимость недоступна.
func Handler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Status: "ok"}
		code := http.StatusOK

		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), CheckTimeout)
			err := c.Fn(ctx)
			cancel()

			if err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "not ready"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
