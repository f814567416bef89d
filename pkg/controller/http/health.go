package http

import (
	"net/http"
	"time"

	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
)

// serviceName is reported by /health
const serviceName = "docpack"

// healthHandler answers liveness probes. It never touches the upstream roster
// so a down upstream does not get the service restarted.
type healthHandler struct {
	started      time.Time
	authRequired bool
	metrics      bool
}

func newHealthHandler(cfg *config) *healthHandler {
	return &healthHandler{
		started:      time.Now(),
		authRequired: cfg.authRequired,
		metrics:      cfg.metrics != nil,
	}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, &model.HealthStatus{
		Status:        "healthy",
		Service:       serviceName,
		Version:       types.Version,
		AuthRequired:  h.authRequired,
		Metrics:       h.metrics,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}
