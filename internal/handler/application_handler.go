package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulink/tutoring-api/internal/service"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
	"github.com/edulink/tutoring-api/pkg/response"
)

// ApplicationHandler exposes teacher application endpoints.
type ApplicationHandler struct {
	applications *service.ApplicationService
	metrics      *service.MetricsService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(applications *service.ApplicationService, metrics *service.MetricsService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, metrics: metrics}
}

// Submit godoc
// @Summary Apply to an open request
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /requests/{id}/applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	application, err := h.applications.Submit(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncWorkflowTransition("application_submitted")
	}
	response.Created(c, application)
}

// List godoc
// @Summary List applications for a request
// @Tags Applications
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	applications, err := h.applications.ListForRequest(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, nil)
}

// Accept godoc
// @Summary Accept one application, scheduling the course
// @Tags Applications
// @Produce json
// @Param id path string true "Request ID"
// @Param applicationId path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Router /requests/{id}/applications/{applicationId}/accept [post]
func (h *ApplicationHandler) Accept(c *gin.Context) {
	course, err := h.applications.Accept(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("applicationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncWorkflowTransition("application_accepted")
	}
	response.Created(c, course)
}
