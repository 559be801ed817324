package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// 确保实现了接口
var _ interfaces.CoreHandle = (*Core)(nil)

// Core 核心句柄
//
// 包装引擎日志并承载注册表侧的生命周期状态。生命周期由
// 注册表独占；会话只持有共享读引用。
type Core struct {
	index         string
	discoveryOnly bool

	log interfaces.Log

	// readyErr 在 readyCh 关闭前写入，之后只读
	readyCh  chan struct{}
	readyErr error
	once     sync.Once

	state atomic.Int32
}

func newCore(index string, l interfaces.Log, discoveryOnly bool) *Core {
	c := &Core{
		index:         index,
		discoveryOnly: discoveryOnly,
		log:           l,
		readyCh:       make(chan struct{}),
	}
	c.state.Store(int32(interfaces.CoreStatePending))
	return c
}

// Index 创建时的规范索引键
func (c *Core) Index() string {
	return c.index
}

// Key 公钥（就绪前可能为空）
func (c *Core) Key() types.Key {
	return c.log.Key()
}

// DiscoveryKey 发现密钥（就绪前可能为空）
func (c *Core) DiscoveryKey() types.Key {
	return c.log.DiscoveryKey()
}

// Writable 本方是否可以追加
func (c *Core) Writable() bool {
	return c.log.Writable()
}

// Log 底层日志
func (c *Core) Log() interfaces.Log {
	return c.log
}

// State 当前生命周期状态
func (c *Core) State() interfaces.CoreState {
	return interfaces.CoreState(c.state.Load())
}

// Ready 阻塞等待句柄就绪
//
// 注册表在登记和注入完成后才交付就绪，调用方拿到就绪的
// 句柄时双重索引已经生效。
func (c *Core) Ready(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.readyCh:
		return c.readyErr
	}
}

// succeed 标记就绪（仅注册表调用，至多一次）
func (c *Core) succeed() {
	c.once.Do(func() {
		c.state.Store(int32(interfaces.CoreStateReady))
		close(c.readyCh)
	})
}

// fail 标记失败（仅注册表调用，至多一次）
func (c *Core) fail(err error) {
	c.once.Do(func() {
		c.readyErr = err
		c.state.Store(int32(interfaces.CoreStateErrored))
		close(c.readyCh)
	})
}

// close 关闭底层日志并更新状态
func (c *Core) close(ctx context.Context) error {
	if c.State() == interfaces.CoreStateClosed {
		return nil
	}
	err := c.log.Close(ctx)
	c.state.Store(int32(interfaces.CoreStateClosed))
	return err
}
