// Package health expone liveness y readiness.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Pinger es cualquier dependencia que pueda chequearse (store, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Check struct {
	Name   string
	Pinger Pinger
}

type Controller struct {
	checks  []Check
	timeout time.Duration
}

func NewController(checks ...Check) *Controller {
	return &Controller{checks: checks, timeout: 2 * time.Second}
}

// Live maneja GET /healthz
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Ready maneja GET /readyz: 503 si algún check falla.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	for _, ch := range c.checks {
		if err := ch.Pinger.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(ch.Name), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrUnavailable.WithDetail(ch.Name+" unavailable"))
			return
		}
	}
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ready"})
}
