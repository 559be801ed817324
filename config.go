package corestore

// Config 存储配置
//
// 供 Fx 模块使用；宿主应用通过 fx.Supply 提供。
type Config struct {
	// Base 存储根目录
	Base string

	// Encrypt 默认加密所有复制会话
	Encrypt bool

	// KeepAlive 默认为复制会话开启底层保活
	KeepAlive bool
}

// buildOptions 将配置转换为选项列表
func (c *Config) buildOptions() []Option {
	var opts []Option
	if c.Encrypt {
		opts = append(opts, WithEncryption())
	}
	if c.KeepAlive {
		opts = append(opts, WithKeepAlive())
	}
	return opts
}
