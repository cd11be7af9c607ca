package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/service"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
	"github.com/edulink/tutoring-api/pkg/response"
)

// RequestHandler exposes course request endpoints.
type RequestHandler struct {
	requests *service.RequestService
	metrics  *service.MetricsService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests *service.RequestService, metrics *service.MetricsService) *RequestHandler {
	return &RequestHandler{requests: requests, metrics: metrics}
}

// Create godoc
// @Summary Post a new course request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var input service.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.Create(c.Request.Context(), claimsFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncWorkflowTransition("request_created")
	}
	response.Created(c, request)
}

// List godoc
// @Summary List requests for the caller's role
// @Description Parents see their own requests, teachers see the open queue,
// @Description coordinators and admins see everything.
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated status filter (back-office only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	switch claims.Role {
	case models.RoleParent:
		requests, pagination, err := h.requests.ListForParent(c.Request.Context(), claims.UserID, page, size)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, requests, pagination)
	case models.RoleTeacher:
		requests, err := h.requests.ListOpenForTeachers(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, requests, nil)
	default:
		var statuses []models.RequestStatus
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				status := models.RequestStatus(strings.TrimSpace(s))
				if !status.Valid() {
					response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
					return
				}
				statuses = append(statuses, status)
			}
		}
		requests, pagination, err := h.requests.ListAll(c.Request.Context(), statuses, page, size)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, requests, pagination)
	}
}

// Get godoc
// @Summary Get request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	request, err := h.requests.Cancel(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncWorkflowTransition("request_cancelled")
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Complete godoc
// @Summary Mark an assigned request as completed
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/complete [post]
func (h *RequestHandler) Complete(c *gin.Context) {
	request, err := h.requests.Complete(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncWorkflowTransition("request_completed")
	}
	response.JSON(c, http.StatusOK, request, nil)
}
