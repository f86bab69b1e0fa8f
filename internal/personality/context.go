package personality

// MemoryResetter 是切换人格时需要清空的会话窗口。
type MemoryResetter interface {
	Clear()
}

// Context 记录会话当前使用的人格。
// 切换人格意味着驱动会话的 system prompt 变了，旧的上下文随之作废，
// 因此 Select 总是清空窗口，同一窗口内不会混用多个人格。
type Context struct {
	current string
	memory  MemoryResetter
}

// NewContext 创建一个以 key 为初始人格的上下文。key 为空时使用 DefaultKey。
func NewContext(memory MemoryResetter, key string) *Context {
	if key == "" {
		key = DefaultKey
	}
	return &Context{current: key, memory: memory}
}

// Select 设置当前人格并无条件清空窗口。
func (c *Context) Select(key string) {
	c.current = key
	if c.memory != nil {
		c.memory.Clear()
	}
}

// Current 返回当前人格 key。
func (c *Context) Current() string {
	return c.current
}

// ResolvePrompt 查表返回 key 的 prompt，未知 key 回退到默认人格。
func (c *Context) ResolvePrompt(key string) string {
	return Prompt(key)
}

// Prompt 返回当前人格的 prompt。
func (c *Context) Prompt() string {
	return c.ResolvePrompt(c.current)
}
