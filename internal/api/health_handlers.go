package api

import (
	"net/http"
	"time"

	"github.com/shelfmarkapp/shelfmark-server/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	start := time.Now()
	// A cheap read proves the connection, the lock arbiter, and the
	// statement cache are all alive.
	_, err := s.catalog.Search(r.Context(), "health", 1)
	latency := time.Since(start)
	if err != nil {
		components["database"] = ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "catalog read failed",
		}
		overall = "unhealthy"
	} else {
		components["database"] = ComponentHealth{
			Status:  "healthy",
			Latency: latency.String(),
		}
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, HealthResponse{Status: overall, Components: components}, s.logger)
}
