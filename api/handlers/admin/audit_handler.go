package admin

import (
	"time"

	"communityhub/internal/audit"
	"communityhub/internal/common"

	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志 API 处理器
type AuditHandler struct {
	logger *audit.Logger
}

// NewAuditHandler 创建处理器
func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

// List 查询审计日志
// 支持 actorId、action、resourceId 以及 RFC3339 格式的 from/to 过滤
// @Summary 查询审计日志
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param actorId query string false "操作人 ID"
// @Param action query string false "事件类型"
// @Param resourceId query string false "资源 ID"
// @Param from query string false "起始时间 RFC3339"
// @Param to query string false "结束时间 RFC3339"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.APIResponse{data=[]audit.Entry}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Router /api/admin/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	filter := audit.Filter{
		ActorID:    c.Query("actorId"),
		Action:     c.Query("action"),
		ResourceID: c.Query("resourceId"),
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ResponseBadRequest(c, key+" 必须为 RFC3339 时间")
			return
		}
		*dst = &t
	}

	entries, total, err := h.logger.Query(c.Request.Context(), filter, page)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseList(c, entries, total, page)
}
