package posts

import (
	"communityhub/internal/auth"
	"communityhub/internal/common"
	"communityhub/internal/community"

	"github.com/gin-gonic/gin"
)

// ReportHandler 举报 API 处理器
type ReportHandler struct {
	service *community.Service
}

// NewReportHandler 创建处理器
func NewReportHandler(service *community.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

// Create 提交举报
// @Summary 提交举报
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body community.CreateReportRequest true "举报内容"
// @Success 201 {object} common.APIResponse{data=community.Report}
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req community.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	report, err := h.service.CreateReport(c.Request.Context(), auth.CurrentUserID(c), req)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseCreated(c, report)
}
