package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/streamfan/pkg/response"
)

// ProcessTasks 在本次请求的时间预算内推进积压任务，供外部定时器调用
// @Summary 推进待处理扇出任务
// @Tags 任务
// @Produce json
// @Param actor query string false "只处理该 actor 的任务"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 500 {object} response.Response
// @Router /api/v1/tasks/process [post]
func (h *Handler) ProcessTasks(c *gin.Context) {
	ctx := c.Request.Context()
	if h.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.budget)
		defer cancel()
	}
	start := time.Now()
	n, err := h.processor.Drain(ctx, c.Query("actor"))
	if err != nil && n == 0 {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"processed": n, "elapsed_ms": time.Since(start).Milliseconds()})
}
