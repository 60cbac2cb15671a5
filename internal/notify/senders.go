package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/streamfan/pkg/logger"
)

// LogSender 仅记录日志的适配器（真实 IM/SMS/邮件网关接入前使用）
type LogSender struct {
	Channel Channel
}

func (s LogSender) SendMessage(_ context.Context, recipients []string, body, _ string) error {
	logger.Info("notify",
		zap.String("channel", string(s.Channel)),
		zap.Strings("recipients", recipients),
		zap.String("body", body))
	return nil
}

// Throttled 以令牌桶限制单通道的发送频率，每批占一个令牌。
// 等待会超过 ctx 截止时间时立即返回 ErrDeferred。
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled perSecond <= 0 时不限速
func NewThrottled(next Sender, perSecond float64, burst int) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) SendMessage(ctx context.Context, recipients []string, body, htmlBody string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDeferred, err)
	}
	return t.next.SendMessage(ctx, recipients, body, htmlBody)
}

// Sent 一次发送记录
type Sent struct {
	Recipients []string
	Body       string
	HTML       string
}

// Recorder 记录所有发送，供基准与测试统计
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) SendMessage(_ context.Context, recipients []string, body, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Recipients: append([]string(nil), recipients...), Body: body, HTML: htmlBody})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Recipients 所有批次的收件人（含重复）
func (r *Recorder) Recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		out = append(out, s.Recipients...)
	}
	return out
}
