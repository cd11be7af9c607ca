package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulink/tutoring-api/internal/service"
	"github.com/edulink/tutoring-api/pkg/response"
)

// DashboardHandler exposes role-specific overview endpoints.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Coordinator godoc
// @Summary Coordinator overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/coordinator [get]
func (h *DashboardHandler) Coordinator(c *gin.Context) {
	dashboard, err := h.dashboards.Coordinator(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Admin godoc
// @Summary Admin overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dashboard, err := h.dashboards.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
