package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/streamfan/internal/service"
	"github.com/d60-Lab/streamfan/pkg/response"
)

// Post 发布条目；扇出在后台继续
// @Summary 发布条目
// @Tags 发布
// @Accept json
// @Produce json
// @Param X-Actor header string true "调用方 nick"
// @Param request body service.PostRequest true "条目内容"
// @Success 200 {object} response.Response{data=model.Entry}
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/entries [post]
func (h *Handler) Post(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req service.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Nick == "" {
		req.Nick = who.Nick()
	}
	entry, err := h.publisher.Post(c.Request.Context(), who, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entry)
}

// AddComment 评论
// @Summary 评论条目
// @Tags 发布
// @Accept json
// @Produce json
// @Param X-Actor header string true "调用方 nick"
// @Param request body service.CommentRequest true "评论内容"
// @Success 200 {object} response.Response{data=model.Entry}
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/entries/comments [post]
func (h *Handler) AddComment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Nick == "" {
		req.Nick = who.Nick()
	}
	entry, err := h.publisher.AddComment(c.Request.Context(), who, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entry)
}
