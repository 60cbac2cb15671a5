package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/pkg/logger"
)

// Dispatcher 按通道路由到适配器。适配器故障只记录；
// ErrDeferred 或 ctx 失效向上返回，由调用方保留进度重试。
type Dispatcher struct {
	senders map[Channel]Sender
}

func NewDispatcher(senders map[Channel]Sender) *Dispatcher {
	m := make(map[Channel]Sender, len(senders))
	for ch, s := range senders {
		if s != nil {
			m[ch] = s
		}
	}
	return &Dispatcher{senders: m}
}

// Dispatch 发送一批；返回实际交给适配器的收件人数
func (d *Dispatcher) Dispatch(ctx context.Context, ch Channel, recipients []string, msg Message) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}
	s, ok := d.senders[ch]
	if !ok {
		logger.Debug("no sender configured", zap.String("channel", string(ch)), zap.Int("recipients", len(recipients)))
		return 0, nil
	}
	if err := s.SendMessage(ctx, recipients, msg.Body, msg.HTML); err != nil {
		if errors.Is(err, ErrDeferred) || ctx.Err() != nil {
			logger.Info("notification deferred",
				zap.String("channel", string(ch)),
				zap.Int("recipients", len(recipients)),
				zap.Error(err))
			return 0, err
		}
		logger.Warn("notification send failed",
			zap.String("channel", string(ch)),
			zap.Int("recipients", len(recipients)),
			zap.Error(err))
		return 0, nil
	}
	logger.Debug("notification sent", zap.String("channel", string(ch)), zap.Int("recipients", len(recipients)))
	return len(recipients), nil
}
