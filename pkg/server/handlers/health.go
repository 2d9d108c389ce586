package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/controlgraph"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine *controlgraph.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine *controlgraph.Client) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "controlgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready - the service is ready once the vector
// store answers.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	count, err := h.engine.PassageCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	hasGraph := h.engine.Graph() != nil
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"passages":  count,
		"has_graph": hasGraph,
		"agents":    h.engine.Agents(),
	})
}
