package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-adm/university-api/internal/service"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
	"github.com/campus-adm/university-api/pkg/response"
)

// ResultHandler exposes grading endpoints.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler constructs ResultHandler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Publish godoc
// @Summary Publish a result for an approved registration
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.PublishResultRequest true "Result payload"
// @Success 201 {object} response.Envelope
// @Router /results [post]
func (h *ResultHandler) Publish(c *gin.Context) {
	var req service.PublishResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.results.Publish(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get the result for a registration
// @Tags Results
// @Produce json
// @Param registrationId path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /results/{registrationId} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	result, err := h.results.GetByRegistration(c.Request.Context(), c.Param("registrationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Transcript godoc
// @Summary Download the transcript PDF for a registration
// @Tags Results
// @Produce application/pdf
// @Param registrationId path string true "Registration ID"
// @Success 200 {file} binary
// @Router /results/{registrationId}/transcript.pdf [get]
func (h *ResultHandler) Transcript(c *gin.Context) {
	pdf, err := h.results.Transcript(c.Request.Context(), c.Param("registrationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("transcript-%s.pdf", c.Param("registrationId"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
