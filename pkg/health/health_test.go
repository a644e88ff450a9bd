package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRunReportsWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(pingFunc(func(context.Context) error { return nil })))
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	cb := resilience.NewCircuitBreaker("index", resilience.CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(func() error { return apperrors.Storage("zadd", errors.New("down")) })
	c.Register("breaker", BreakerCheck(cb))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Components["breaker"].Message, "circuit open after 1 consecutive failures")

	c.Register("postgres", PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") })))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "refused", report.Components["postgres"].Message)
	assert.Len(t, report.Components, 3)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") })))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
