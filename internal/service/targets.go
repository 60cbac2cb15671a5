package service

import (
	"sort"
	"strings"

	"github.com/d60-Lab/streamfan/internal/model"
	"github.com/d60-Lab/streamfan/internal/notify"
)

// scope 一个条目的扇出范围，每次恢复都重新计算，不存储
type scope struct {
	entry      *model.Entry
	stream     *model.Stream // 决定可见性的 stream：评论取父条目的 stream
	parent     *model.Entry
	topics     []string
	restricted bool
	initial    []string // 起始阶段固定收件 inbox，升序
}

func newScope(entry, parent *model.Entry, stream *model.Stream) *scope {
	sc := &scope{entry: entry, parent: parent, stream: stream, restricted: stream.Restricted()}
	if parent != nil {
		sc.topics = []string{parent.Stream, parent.Key}
		sc.initial = initialCommentTargets(entry, parent)
	} else {
		sc.topics = []string{entry.Stream}
		sc.initial = initialPostTargets(entry, stream)
	}
	return sc
}

func initialPostTargets(e *model.Entry, s *model.Stream) []string {
	set := map[string]struct{}{
		model.InboxKey(e.Actor, model.ViewOverview): {},
		model.InboxKey(s.Owner, model.ViewPrivate):  {},
	}
	if s.Read >= model.PrivacyContacts {
		set[model.InboxKey(s.Owner, model.ViewContacts)] = struct{}{}
	}
	if s.Read >= model.PrivacyPublic {
		set[model.InboxKey(s.Owner, model.ViewPublic)] = struct{}{}
	}
	if s.Owner != e.Actor {
		set[model.InboxKey(s.Owner, model.ViewOverview)] = struct{}{}
	}
	return sortedKeys(set)
}

func initialCommentTargets(e, parent *model.Entry) []string {
	set := map[string]struct{}{
		model.InboxKey(e.Actor, model.ViewOverview):      {},
		model.InboxKey(e.Actor, model.ViewPrivate):       {},
		model.InboxKey(parent.Owner, model.ViewOverview): {},
		model.InboxKey(parent.Actor, model.ViewOverview): {},
	}
	return sortedKeys(set)
}

// inboxTargets 分页结果去掉起始批次已覆盖的目标
func (sc *scope) inboxTargets(page []string) []string {
	return subtract(page, sc.initial)
}

// recipients 某通道本页应通知的 nick。
// 第一页附带起始收件人；之后各页去掉它们，避免重复通知。
// SMS / Email 总是跳过行为者本人。
func (sc *scope) recipients(ch notify.Channel, page []string, firstPage bool) []string {
	initial := nicksOf(sc.initial)
	nicks := subtract(nicksOf(page), initial)
	if firstPage {
		nicks = union(nicks, initial)
	}
	if ch == notify.ChannelSMS || ch == notify.ChannelEmail {
		nicks = subtract(nicks, []string{sc.entry.Actor})
	}
	return nicks
}

// parseInbox 拆分 inbox/<nick>/<view>
func parseInbox(target string) (nick, view string, ok bool) {
	rest, found := strings.CutPrefix(target, "inbox/")
	if !found {
		return "", "", false
	}
	nick, view, ok = strings.Cut(rest, "/")
	return nick, view, ok && nick != ""
}

// nicksOf 只有 overview 目标代表需要通知的人
func nicksOf(targets []string) []string {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if nick, view, ok := parseInbox(t); ok && view == model.ViewOverview {
			set[nick] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func subtract(xs, remove []string) []string {
	if len(remove) == 0 {
		return xs
	}
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if _, ok := drop[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}

func union(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	return sortedKeys(set)
}
