package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jobmate/cancel_go_server/internal/api/middleware"
	"github.com/jobmate/cancel_go_server/internal/model/dto"
	"github.com/jobmate/cancel_go_server/internal/pkg/response"
	"github.com/jobmate/cancel_go_server/internal/repository"
	"github.com/jobmate/cancel_go_server/internal/service"
	"github.com/jobmate/cancel_go_server/internal/wizard"
)

type CancellationHandler struct {
	cancellationService *service.CancellationService
}

func NewCancellationHandler(cancellationService *service.CancellationService) *CancellationHandler {
	return &CancellationHandler{
		cancellationService: cancellationService,
	}
}

// resolveTarget 解析调用者和目标用户。默认目标是调用者自己；
// 演示模式的匿名请求用 user_id 查询参数指定目标，服务层会再做归属校验。
func resolveTarget(c *gin.Context) (callerID, userID int64, ok bool) {
	callerID, _ = middleware.GetUserID(c)
	userID = callerID

	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.ParamError(c, "无效的用户ID")
			return 0, 0, false
		}
		userID = parsed
	}
	return callerID, userID, true
}

// Get 获取当前取消记录，带续作状态
// GET /api/v1/cancellations/current
func (h *CancellationHandler) Get(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	detail, err := h.cancellationService.Get(callerID, userID)
	if err != nil {
		switch err {
		case service.ErrCancellationNotFound:
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

// SaveDraft 部分保存问卷草稿
// PATCH /api/v1/cancellations/current/draft
func (h *CancellationHandler) SaveDraft(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.cancellationService.SaveDraft(callerID, userID, &req)
	if err != nil {
		switch err {
		case service.ErrCancellationNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		case service.ErrCancellationFinalized:
			response.TransitionError(c, err.Error())
		case service.ErrInvalidRangeOption:
			response.ValidationError(c, err.Error())
		case repository.ErrVariantImmutable:
			response.ImmutableError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// AcceptDownsell 接受挽留报价
// POST /api/v1/cancellations/current/downsell/accept
func (h *CancellationHandler) AcceptDownsell(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	// 请求体可选，演示模式也可以在 body 里带目标用户
	var req dto.AcceptDownsellRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.UserID > 0 {
		userID = req.UserID
	}

	resp, err := h.cancellationService.AcceptDownsell(callerID, userID)
	if err != nil {
		switch err {
		case service.ErrCancellationNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		case service.ErrCancellationFinalized:
			response.TransitionError(c, err.Error())
		case service.ErrDownsellUnavailable:
			response.ValidationError(c, err.Error())
		case service.ErrDownsellAlreadyAccepted:
			response.DuplicateError(c, err.Error())
		case repository.ErrInvalidStatusTransition:
			response.TransitionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "挽留报价已生效", resp)
}

// FinalizeFoundJob 已找到工作分支定稿
// POST /api/v1/cancellations/current/finalize/found-job
func (h *CancellationHandler) FinalizeFoundJob(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	var req dto.FinalizeFoundJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.cancellationService.FinalizeFoundJob(callerID, userID, &req)
	if err != nil {
		switch err {
		case service.ErrCancellationNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		case wizard.ErrJobStatusIncomplete, wizard.ErrFeedbackTooShort, wizard.ErrConfirmationIncomplete:
			response.ValidationError(c, err.Error())
		case repository.ErrInvalidStatusTransition:
			response.TransitionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "取消流程已定稿", resp)
}

// FinalizeStillLooking 仍在找工作分支定稿
// POST /api/v1/cancellations/current/finalize/still-looking
func (h *CancellationHandler) FinalizeStillLooking(c *gin.Context) {
	callerID, userID, ok := resolveTarget(c)
	if !ok {
		return
	}

	var req dto.FinalizeStillLookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.cancellationService.FinalizeStillLooking(callerID, userID, &req)
	if err != nil {
		switch err {
		case service.ErrCancellationNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrCancellationPermission:
			response.PermissionError(c, err.Error())
		case wizard.ErrUsingIncomplete, wizard.ErrReasonIncomplete:
			response.ValidationError(c, err.Error())
		case repository.ErrInvalidStatusTransition:
			response.TransitionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "取消流程已定稿", resp)
}
