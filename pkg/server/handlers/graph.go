package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/server/dto"
)

// GraphHandler handles knowledge graph inspection requests
type GraphHandler struct {
	engine *controlgraph.Client
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(engine *controlgraph.Client) *GraphHandler {
	return &GraphHandler{engine: engine}
}

// Stats handles GET /api/v1/graph/stats
func (h *GraphHandler) Stats(c *gin.Context) {
	topN := 5
	if v := c.Query("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "top must be a non-negative integer"})
			return
		}
		topN = n
	}

	stats, err := h.engine.GraphStats(topN)
	if err != nil {
		writeError(c, "graph_unavailable", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Entity handles GET /api/v1/graph/entities/:id
func (h *GraphHandler) Entity(c *gin.Context) {
	graph := h.engine.Graph()
	if graph == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "graph_unavailable", Message: "no graph has been built"})
		return
	}

	id := c.Param("id")
	entity := graph.Entity(id)
	if entity == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: "entity " + id + " not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entity":     entity,
		"centrality": graph.Centrality(id),
		"neighbors":  graph.Neighbors(id),
	})
}
