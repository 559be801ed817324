package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
)

// Session 一条活跃的复制会话
//
// 生命周期由会话集独占；三个终止信号（本方结束、对端结束、
// 底层关闭）收敛为至多一次的移除动作。
type Session struct {
	set    *Set
	stream interfaces.Stream

	mu sync.Mutex
	// attached 已成功附加核心的发现密钥十六进制
	attached map[string]struct{}
	// pending 附加尝试在途的发现密钥，去重并发尝试
	pending map[string]struct{}

	closed  atomic.Bool
	removal sync.Once
}

// Stream 底层复制流
func (s *Session) Stream() interfaces.Stream {
	return s.stream
}

// attach 共享附加规则
//
// 已附加则无操作；否则等待核心就绪后指示流开始复制，复制
// 成功才记录身份，失败的尝试留待后续注入调和时重试。就绪
// 前出错的核心永远不会被附加。成功附加是单调的：除整个会
// 话销毁外，(core, session) 对不会解除。
func (s *Session) attach(core interfaces.CoreHandle) {
	if err := core.Ready(context.Background()); err != nil {
		return
	}
	if s.closed.Load() {
		return
	}

	dk := core.DiscoveryKey().Hex()

	s.mu.Lock()
	if _, ok := s.attached[dk]; ok {
		s.mu.Unlock()
		return
	}
	if _, ok := s.pending[dk]; ok {
		s.mu.Unlock()
		return
	}
	s.pending[dk] = struct{}{}
	s.mu.Unlock()

	err := s.stream.Replicate(core.Log())

	s.mu.Lock()
	delete(s.pending, dk)
	if err == nil {
		s.attached[dk] = struct{}{}
	}
	s.mu.Unlock()

	if err != nil {
		logger.Warn("附加核心到会话失败",
			"discoveryKey", log.TruncateID(dk, 8), "error", err)
	}
}

// attached 身份集合大小（测试与自省用）
func (s *Session) attachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attached)
}

// watchAnnouncements 响应对端通告
//
// 每个未知发现密钥触发一次发现模式打开；其就绪后由注册表
// 注入所有会话（包括本会话），这里不做特殊处理。
func (s *Session) watchAnnouncements() {
	for dk := range s.stream.Announcements() {
		if _, err := s.set.opener.OpenByDiscoveryKey(dk); err != nil {
			logger.Warn("按通告打开核心失败",
				"discoveryKey", log.TruncateID(dk.Hex(), 8), "error", err)
		}
	}
}

// watchTermination 收敛三个终止信号
func (s *Session) watchTermination() {
	select {
	case <-s.stream.Finished():
	case <-s.stream.Ended():
	case <-s.stream.Closed():
	}
	s.remove()
}

// remove 从活跃集移除（至多一次）
func (s *Session) remove() {
	s.removal.Do(func() {
		s.closed.Store(true)
		s.set.drop(s)
	})
}

// Close 销毁会话
//
// 无条件销毁底层流；移除动作幂等，信号随后到达也不会重复。
func (s *Session) Close() error {
	err := s.stream.Destroy()
	s.remove()
	return err
}
