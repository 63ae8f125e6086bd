package admin

import (
	"communityhub/internal/auth"
	"communityhub/internal/common"
	"communityhub/internal/config"
	"communityhub/internal/review"

	"github.com/gin-gonic/gin"
)

// ReviewHandler 审核后台 API 处理器
type ReviewHandler struct {
	service         *review.Service
	defaultPageSize int
	maxPageSize     int
}

// NewReviewHandler 创建处理器
func NewReviewHandler(service *review.Service, cfg config.ModerationConfig) *ReviewHandler {
	h := &ReviewHandler{
		service:         service,
		defaultPageSize: cfg.QueuePageSize,
		maxPageSize:     cfg.QueueMaxPage,
	}
	if h.defaultPageSize <= 0 {
		h.defaultPageSize = 20
	}
	if h.maxPageSize <= 0 || h.maxPageSize > common.MaxPageSize {
		h.maxPageSize = common.MaxPageSize
	}
	return h
}

// bindPage 读取分页参数并套用队列上限
func (h *ReviewHandler) bindPage(c *gin.Context) (common.PaginationRequest, bool) {
	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return page, false
	}
	if page.PageSize == 0 {
		page.PageSize = h.defaultPageSize
	}
	if page.PageSize > h.maxPageSize {
		page.PageSize = h.maxPageSize
	}
	return page, true
}

// Queue 待复核队列
// @Summary 待复核队列
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.APIResponse{data=[]review.QueueItem}
// @Failure 403 {object} common.APIResponse
// @Router /api/admin/moderation/queue [get]
func (h *ReviewHandler) Queue(c *gin.Context) {
	page, ok := h.bindPage(c)
	if !ok {
		return
	}

	items, total, err := h.service.Queue(c.Request.Context(), page)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseList(c, items, total, page)
}

// Review 执行复核动作
// @Summary 复核帖子
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body review.ReviewRequest true "action 取值 approve、hide、delete"
// @Success 200 {object} common.APIResponse{data=review.ReviewResult}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/admin/moderation/review [post]
func (h *ReviewHandler) Review(c *gin.Context) {
	var req review.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	result, err := h.service.Review(c.Request.Context(), auth.CurrentUserID(c), req)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// ListReports 举报列表，可按 status 过滤
// @Summary 举报列表
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param status query string false "PENDING、RESOLVED、APPROVED、DENIED"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.APIResponse{data=[]community.Report}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Router /api/admin/reports [get]
func (h *ReviewHandler) ListReports(c *gin.Context) {
	page, ok := h.bindPage(c)
	if !ok {
		return
	}

	reports, total, err := h.service.ListReports(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseList(c, reports, total, page)
}

// ResolveReport 处理单条举报
// @Summary 处理单条举报
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "举报 ID"
// @Param request body review.ResolveReportRequest true "status 取值 APPROVED、DENIED"
// @Success 200 {object} common.APIResponse{data=community.Report}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/admin/reports/{id}/resolve [post]
func (h *ReviewHandler) ResolveReport(c *gin.Context) {
	var req review.ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	report, err := h.service.ResolveReport(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseSuccess(c, report)
}

// Stats 审核概况
// @Summary 审核概况
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse{data=review.Stats}
// @Failure 403 {object} common.APIResponse
// @Router /api/admin/moderation/stats [get]
func (h *ReviewHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	common.ResponseSuccess(c, stats)
}
