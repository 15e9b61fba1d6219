// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger expone el chequeo de vida de una dependencia (postgres, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller maneja GET /healthz.
type Controller struct {
	deps map[string]Pinger
}

// NewController recibe las dependencias a chequear, por nombre.
// Un Pinger nil se reporta "skipped" (ej: redis no configurado).
func NewController(deps map[string]Pinger) *Controller {
	return &Controller{deps: deps}
}

type healthResponse struct {
	Status     string            `json:"status"` // ok | degraded
	Components map[string]string `json:"components,omitempty"`
}

// Healthz maneja GET /healthz
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Components: map[string]string{}}
	status := http.StatusOK

	for name, p := range c.deps {
		if p == nil {
			resp.Components[name] = "skipped"
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Components[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
