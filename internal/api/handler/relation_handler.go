package handler

import (
    "strconv"

    "github.com/gin-gonic/gin"

    "github.com/d60-Lab/streamfan/internal/service"
    "github.com/d60-Lab/streamfan/pkg/response"
)

type followRequest struct {
    Nick string `json:"nick" binding:"required"`
}

type notificationsRequest struct {
    IM    bool `json:"im"`
    SMS   bool `json:"sms"`
    Email bool `json:"email"`
}

// CreateActor 注册用户或频道
// @Summary 注册 actor
// @Tags 关系链
// @Accept json
// @Produce json
// @Param request body service.CreateActorRequest true "actor 信息"
// @Success 200 {object} response.Response{data=model.Actor}
// @Failure 400 {object} response.Response
// @Router /api/v1/actors [post]
func (h *Handler) CreateActor(c *gin.Context) {
    var req service.CreateActorRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        response.BadRequest(c, err.Error())
        return
    }
    actor, err := h.relService.CreateActor(c.Request.Context(), req)
    if err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, actor)
}

// Follow 订阅某 actor 的 presence；受限 stream 进入 pending
// @Summary 关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Param X-Actor header string true "调用方 nick"
// @Param request body followRequest true "被关注者"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
    who, ok := caller(c)
    if !ok {
        return
    }
    var req followRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        response.BadRequest(c, err.Error())
        return
    }
    if err := h.relService.Follow(c.Request.Context(), who.Nick(), req.Nick); err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, nil)
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Param X-Actor header string true "调用方 nick"
// @Param request body followRequest true "被关注者"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
    who, ok := caller(c)
    if !ok {
        return
    }
    var req followRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        response.BadRequest(c, err.Error())
        return
    }
    if err := h.relService.Unfollow(c.Request.Context(), who.Nick(), req.Nick); err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, nil)
}

// Approve 通过一个 pending 的关注请求
// @Summary 通过关注请求
// @Tags 关系链
// @Accept json
// @Produce json
// @Param X-Actor header string true "stream owner"
// @Param request body followRequest true "关注者"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/approve [post]
func (h *Handler) Approve(c *gin.Context) {
    who, ok := caller(c)
    if !ok {
        return
    }
    var req followRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        response.BadRequest(c, err.Error())
        return
    }
    if err := h.relService.Approve(c.Request.Context(), who.Nick(), req.Nick); err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, nil)
}

// ListFollowers 查询某 actor 的关注者（游标分页）
// @Summary 查询关注者
// @Tags 关系链
// @Param nick path string true "actor nick"
// @Param after query string false "上一页最后一个 inbox"
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{nick}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
    nick := c.Param("nick")
    limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
    list, err := h.relService.ListFollowers(c.Request.Context(), nick, c.Query("after"), limit)
    if err != nil {
        response.InternalError(c, err)
        return
    }
    response.Success(c, gin.H{"limit": limit, "list": list})
}

// SetNotifications 修改自己的通知通道开关
// @Summary 通知设置
// @Tags 关系链
// @Accept json
// @Param X-Actor header string true "调用方 nick"
// @Param request body notificationsRequest true "各通道开关"
// @Success 200 {object} response.Response
// @Router /api/v1/actors/notifications [put]
func (h *Handler) SetNotifications(c *gin.Context) {
    who, ok := caller(c)
    if !ok {
        return
    }
    var req notificationsRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        response.BadRequest(c, err.Error())
        return
    }
    if err := h.relService.SetNotifications(c.Request.Context(), who.Nick(), req.IM, req.SMS, req.Email); err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, nil)
}

// DeleteActor 注销自己；在途任务会在下次推进时被丢弃
// @Summary 注销 actor
// @Tags 关系链
// @Param X-Actor header string true "调用方 nick"
// @Success 200 {object} response.Response
// @Router /api/v1/actors [delete]
func (h *Handler) DeleteActor(c *gin.Context) {
    who, ok := caller(c)
    if !ok {
        return
    }
    if err := h.relService.MarkDeleted(c.Request.Context(), who.Nick()); err != nil {
        writeError(c, err)
        return
    }
    response.Success(c, nil)
}
