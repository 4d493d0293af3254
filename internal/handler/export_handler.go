package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confero-api/internal/service"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/response"
)

// ExportHandler exposes decision sheet exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// DecisionSheet godoc
// @Summary Export an event decision sheet
// @Tags Exports
// @Produce text/csv
// @Param eventId path string true "Event id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /events/{eventId}/decision-sheet [get]
func (h *ExportHandler) DecisionSheet(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))
	result, err := h.exports.DecisionSheet(c.Request.Context(), actor, c.Param("eventId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
