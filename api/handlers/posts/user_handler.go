package posts

import (
	"communityhub/internal/audit"
	"communityhub/internal/auth"
	"communityhub/internal/common"
	"communityhub/internal/community"
	"communityhub/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 用户 API 处理器
type UserHandler struct {
	service *community.Service
	audit   *audit.Logger
}

// NewUserHandler 创建处理器，auditLog 可为空
func NewUserHandler(service *community.Service, auditLog *audit.Logger) *UserHandler {
	return &UserHandler{service: service, audit: auditLog}
}

// Me 当前用户
// @Summary 当前用户
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse{data=community.User}
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseSuccess(c, user)
}

// Register 创建用户，仅管理员可用
// @Summary 创建用户
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body community.RegisterUserRequest true "用户信息"
// @Success 201 {object} common.APIResponse{data=community.User}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/admin/users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req community.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.service.RegisterUser(ctx, req)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}

	if h.audit != nil {
		details := map[string]any{"username": user.Username, "accountType": user.AccountType, "isAdmin": user.IsAdmin}
		if err := h.audit.Record(ctx, nil, auth.CurrentUserID(c), audit.EventUserCreate, audit.ResourceUser, user.ID, details); err != nil {
			logger.WithContext(ctx).Warn("写入审计日志失败", zap.Error(err))
		}
	}
	common.ResponseCreated(c, user)
}
