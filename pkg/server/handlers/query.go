package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/retrieve"
	"github.com/soundprediction/controlgraph/pkg/server/dto"
	"github.com/soundprediction/controlgraph/pkg/types"
)

const defaultTopK = 10

// QueryHandler handles retrieval requests
type QueryHandler struct {
	engine *controlgraph.Client
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(engine *controlgraph.Client) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// Query handles POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	alpha := retrieve.DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	result, err := h.engine.Query(c.Request.Context(), req.Query, topK, alpha)
	if err != nil {
		writeError(c, "query_failed", err)
		return
	}

	resp := dto.QueryResponse{
		Query:         req.Query,
		QueryEntities: result.QueryEntities,
		Passages:      make([]dto.PassageResult, len(result.Passages)),
	}
	for i, p := range result.Passages {
		resp.Passages[i] = dto.PassageResult{
			ID:          p.ID,
			Text:        p.Text,
			Source:      p.Source,
			Page:        p.Page,
			Score:       p.Score,
			VectorScore: p.VectorScore,
			GraphScore:  p.GraphScore,
			FromGraph:   p.FromGraph,
			ViaEntities: p.ViaEntities,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, code string, err error) {
	status := http.StatusInternalServerError
	switch types.KindOf(err) {
	case types.KindConfiguration:
		status = http.StatusBadRequest
	case types.KindRetrieval:
		status = http.StatusBadGateway
	case types.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	if errors.Is(err, types.ErrEmptyQuery) || errors.Is(err, types.ErrInvalidTopK) || errors.Is(err, types.ErrInvalidAlpha) {
		status = http.StatusBadRequest
	}
	c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
}
