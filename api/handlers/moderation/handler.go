package moderation

import (
	"communityhub/internal/auth"
	"communityhub/internal/common"
	"communityhub/internal/community"
	"communityhub/internal/moderation"

	"github.com/gin-gonic/gin"
)

// Handler 内容预检 API 处理器
type Handler struct {
	service *community.Service
}

// NewHandler 创建处理器
func NewHandler(service *community.Service) *Handler {
	return &Handler{service: service}
}

// Check 发布前预检内容
// 被拦截时返回 403 并附带决策，其余情况返回 200
// @Summary 内容预检
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body community.CheckContentRequest true "待检查内容"
// @Success 200 {object} common.APIResponse{data=moderation.Decision}
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse{data=moderation.Decision}
// @Router /api/moderation/check [post]
func (h *Handler) Check(c *gin.Context) {
	var req community.CheckContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	decision, err := h.service.CheckContent(c.Request.Context(), auth.CurrentUserID(c), req)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	if decision.Blocked {
		common.ResponseErrorData(c, common.CodeContentBlocked, moderation.BlockedReason, decision)
		return
	}
	common.ResponseSuccess(c, decision)
}
