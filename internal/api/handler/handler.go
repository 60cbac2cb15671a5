package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/streamfan/internal/repository"
	"github.com/d60-Lab/streamfan/internal/service"
	"github.com/d60-Lab/streamfan/pkg/response"
)

// HeaderActor 调用方身份；鉴权由网关完成后注入
const HeaderActor = "X-Actor"

type Handler struct {
	publisher  *service.Publisher
	processor  *service.Processor
	relService service.RelationshipService
	budget     time.Duration // 单次 ProcessTasks 的时间预算
}

func NewHandler(publisher *service.Publisher, processor *service.Processor, relService service.RelationshipService, budget time.Duration) *Handler {
	return &Handler{publisher: publisher, processor: processor, relService: relService, budget: budget}
}

// caller 从请求头取调用方；缺失时返回 false 并已写出 403
func caller(c *gin.Context) (service.Caller, bool) {
	nick := strings.TrimSpace(c.GetHeader(HeaderActor))
	if nick == "" {
		response.Forbidden(c, "missing "+HeaderActor+" header")
		return service.Caller{}, false
	}
	return service.AsActor(nick), true
}

// writeError 把服务层错误映射为 HTTP 状态
func writeError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.BadRequest(c, verrs.Error())
	case errors.Is(err, service.ErrFollowSelf):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrDeletedIdentity):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrDuplicateEntry):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrLocked):
		// 另一个请求正在处理同一任务，稍后可重试
		response.Accepted(c, "in progress")
	default:
		response.InternalError(c, err)
	}
}
