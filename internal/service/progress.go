package service

import (
	"fmt"
	"strings"

	"github.com/d60-Lab/streamfan/internal/notify"
)

const (
	prefixInboxes       = "inboxes:"
	prefixNotifications = "notifications:"
)

type stage int

const (
	stageStart stage = iota
	stageInboxes
	stageNotify
)

// cursor 任务进度：阶段 + 阶段内分页位置
//
//	""                         start
//	"inboxes:<after>"          inbox fan-out
//	"notifications:"           = notifications:im:
//	"notifications:<ch>:<after>"
type cursor struct {
	stage   stage
	channel notify.Channel
	after   string
}

func parseProgress(p string) (cursor, error) {
	switch {
	case p == "":
		return cursor{stage: stageStart}, nil
	case strings.HasPrefix(p, prefixInboxes):
		return cursor{stage: stageInboxes, after: strings.TrimPrefix(p, prefixInboxes)}, nil
	case strings.HasPrefix(p, prefixNotifications):
		rest := strings.TrimPrefix(p, prefixNotifications)
		if rest == "" {
			return cursor{stage: stageNotify, channel: notify.ChannelIM}, nil
		}
		ch, after, ok := strings.Cut(rest, ":")
		if !ok {
			return cursor{}, fmt.Errorf("%w: %q", ErrInvalidProgress, p)
		}
		switch c := notify.Channel(ch); c {
		case notify.ChannelIM, notify.ChannelSMS, notify.ChannelEmail:
			return cursor{stage: stageNotify, channel: c, after: after}, nil
		}
	}
	return cursor{}, fmt.Errorf("%w: %q", ErrInvalidProgress, p)
}

func (c cursor) String() string {
	switch c.stage {
	case stageInboxes:
		return prefixInboxes + c.after
	case stageNotify:
		return prefixNotifications + string(c.channel) + ":" + c.after
	default:
		return ""
	}
}

func inboxesAfter(after string) string { return cursor{stage: stageInboxes, after: after}.String() }

func notifyAfter(ch notify.Channel, after string) string {
	return cursor{stage: stageNotify, channel: ch, after: after}.String()
}

// nextChannel 通道顺序 im → sms → email；最后一个返回 false
func nextChannel(ch notify.Channel) (notify.Channel, bool) {
	for i, c := range notify.Channels {
		if c == ch && i+1 < len(notify.Channels) {
			return notify.Channels[i+1], true
		}
	}
	return "", false
}
