package posts

import (
	"errors"

	"communityhub/internal/auth"
	"communityhub/internal/common"
	"communityhub/internal/community"
	"communityhub/internal/moderation"

	"github.com/gin-gonic/gin"
)

// PostHandler 帖子 API 处理器
type PostHandler struct {
	service *community.Service
}

// NewPostHandler 创建处理器
func NewPostHandler(service *community.Service) *PostHandler {
	return &PostHandler{service: service}
}

// CreatePostResponse 发帖响应
type CreatePostResponse struct {
	Post     *community.Post     `json:"post"`
	Decision moderation.Decision `json:"decision"`
}

// Create 发帖
// @Summary 发帖
// @Tags Posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body community.CreatePostRequest true "帖子内容"
// @Success 201 {object} common.APIResponse{data=CreatePostResponse}
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse{data=moderation.Decision}
// @Router /api/posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	var req community.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	post, decision, err := h.service.CreatePost(c.Request.Context(), auth.CurrentUserID(c), req)
	if err != nil {
		if errors.Is(err, community.ErrContentBlocked) {
			common.ResponseErrorData(c, common.CodeContentBlocked, moderation.BlockedReason, decision)
			return
		}
		common.ResponseErr(c, err)
		return
	}
	common.ResponseCreated(c, CreatePostResponse{Post: post, Decision: decision})
}

// Get 帖子详情，隐藏的帖子仅作者可见
// @Summary 帖子详情
// @Tags Posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "帖子 ID"
// @Success 200 {object} common.APIResponse{data=community.Post}
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/posts/{id} [get]
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.service.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseErr(c, err)
		return
	}
	if post.IsHidden && post.AuthorID != auth.CurrentUserID(c) {
		common.ResponseErr(c, community.ErrPostNotFound)
		return
	}
	common.ResponseSuccess(c, post)
}
