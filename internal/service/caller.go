package service

// Caller 显式的调用方能力。后台扇出使用 Internal()，不走 ACL；
// 面向用户的调用使用 AsActor(nick)。
type Caller struct {
	nick     string
	internal bool
}

func AsActor(nick string) Caller { return Caller{nick: nick} }

func Internal() Caller { return Caller{internal: true} }

func (c Caller) Nick() string { return c.nick }

func (c Caller) IsInternal() bool { return c.internal }

func (c Caller) canActAs(nick string) bool {
	return c.internal || (c.nick != "" && c.nick == nick)
}
