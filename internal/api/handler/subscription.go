package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jobmate/cancel_go_server/internal/pkg/response"
	"github.com/jobmate/cancel_go_server/internal/service"
)

type SubscriptionHandler struct {
	cancellationService *service.CancellationService
}

func NewSubscriptionHandler(cancellationService *service.CancellationService) *SubscriptionHandler {
	return &SubscriptionHandler{
		cancellationService: cancellationService,
	}
}

// GetCurrent 获取当前订阅状态
// GET /api/v1/subscriptions/current
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	detail, err := h.cancellationService.GetSubscription(callerID, userID)
	if err != nil {
		switch err {
		case service.ErrSubscriptionNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}
