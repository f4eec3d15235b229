package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jobmate/cancel_go_server/internal/api/middleware"
	"github.com/jobmate/cancel_go_server/internal/model/dto"
	"github.com/jobmate/cancel_go_server/internal/pkg/response"
	"github.com/jobmate/cancel_go_server/internal/service"
)

type ExperimentHandler struct {
	experimentService *service.ExperimentService
}

func NewExperimentHandler(experimentService *service.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{
		experimentService: experimentService,
	}
}

// Assign 进入取消流程并分配实验分组
// POST /api/v1/cancellations/assign
func (h *ExperimentHandler) Assign(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)

	var req dto.AssignVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.experimentService.AssignVariant(callerID, &req)
	if err != nil {
		switch err {
		case service.ErrUserNotFound, service.ErrSubscriptionNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Stats 实验分组统计
// GET /api/v1/experiment/stats
func (h *ExperimentHandler) Stats(c *gin.Context) {
	stats, err := h.experimentService.Stats()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, stats)
}
