// Package notify 通知通道（IM / SMS / Email）的发送契约与分发
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/d60-Lab/streamfan/internal/cache"
	"github.com/d60-Lab/streamfan/internal/model"
)

// Channel 通知通道
type Channel string

const (
	ChannelIM    Channel = "im"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Channels 扇出流水线依次处理的通道
var Channels = []Channel{ChannelIM, ChannelSMS, ChannelEmail}

// ErrDeferred 本批暂时无法发送（限流或超时），调用方应保留进度稍后重发
var ErrDeferred = errors.New("notification deferred")

// Sender 通道适配器：一次发给一批收件地址
type Sender interface {
	SendMessage(ctx context.Context, recipients []string, body, htmlBody string) error
}

// SenderFunc 适配普通函数
type SenderFunc func(ctx context.Context, recipients []string, body, htmlBody string) error

func (f SenderFunc) SendMessage(ctx context.Context, recipients []string, body, htmlBody string) error {
	return f(ctx, recipients, body, htmlBody)
}

// Message 一条通知
type Message struct {
	Body string
	HTML string
}

// Compose 生成条目通知文本；模板渲染不在此处
func Compose(ch Channel, e *model.Entry) Message {
	text := e.Extra.Title
	if text == "" {
		text = e.Extra.Content
	}
	var body string
	if e.IsComment() {
		body = fmt.Sprintf("%s commented on %s's post: %s", e.Actor, e.Owner, e.Extra.Content)
	} else {
		body = fmt.Sprintf("%s: %s", e.Actor, text)
	}
	msg := Message{Body: body}
	if ch == ChannelEmail {
		msg.HTML = "<p>" + html.EscapeString(body) + "</p>"
	}
	return msg
}

// Addresses 过滤出开启该通道且有地址的收件人
func Addresses(ch Channel, actors []cache.ActorSnapshot) []string {
	out := make([]string, 0, len(actors))
	for _, a := range actors {
		if a.Deleted {
			continue
		}
		switch ch {
		case ChannelIM:
			if a.NotifyIM && a.IMAddress != "" {
				out = append(out, a.IMAddress)
			}
		case ChannelSMS:
			if a.NotifySMS && a.Mobile != "" {
				out = append(out, a.Mobile)
			}
		case ChannelEmail:
			if a.NotifyEmail && a.Email != "" {
				out = append(out, a.Email)
			}
		}
	}
	return out
}
