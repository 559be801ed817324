package session

import (
	"sync"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
)

var logger = log.Logger("core/session")

// 确保实现了接口
var _ interfaces.CoreInjector = (*Set)(nil)

// Set 活跃复制会话集
type Set struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	opener   interfaces.CoreOpener
}

// NewSet 创建会话集
//
// opener 为注册表一侧的接线：对端通告未知发现密钥时用它
// 以发现模式物化本地核心。
func NewSet(opener interfaces.CoreOpener) *Set {
	return &Set{
		sessions: make(map[*Session]struct{}),
		opener:   opener,
	}
}

// Open 打开一条新会话
//
// anchor 为默认核心的日志（可为 nil）；加密且无锚点时以配置
// 错误失败。会话先登记进活跃集再附加现有核心，保证注册表
// 方向的对称注入能找到它。
func (st *Set) Open(anchor interfaces.Log, factory interfaces.StreamFactory,
	opts interfaces.StreamOptions, cores []interfaces.CoreHandle) (*Session, error) {

	if opts.Encrypt && anchor == nil {
		return nil, ErrEncryptionWithoutDefault
	}

	stream, err := factory(anchor, opts)
	if err != nil {
		return nil, err
	}

	s := &Session{
		set:      st,
		stream:   stream,
		attached: make(map[string]struct{}),
		pending:  make(map[string]struct{}),
	}

	st.mu.Lock()
	st.sessions[s] = struct{}{}
	count := len(st.sessions)
	st.mu.Unlock()

	logger.Debug("会话已打开", "active", count, "cores", len(cores))

	for _, core := range cores {
		go s.attach(core)
	}
	go s.watchAnnouncements()
	go s.watchTermination()

	return s, nil
}

// Inject 把核心注入所有活跃会话（CoreInjector 接口）
//
// 注册表在核心首次就绪或幂等调和时调用；附加规则自身保证
// 不会重复附加。
func (st *Set) Inject(core interfaces.CoreHandle) {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	for _, s := range sessions {
		go s.attach(core)
	}
}

// drop 从活跃集移除一条会话
func (st *Set) drop(s *Session) {
	st.mu.Lock()
	delete(st.sessions, s)
	count := len(st.sessions)
	st.mu.Unlock()

	logger.Debug("会话已移除", "active", count)
}

// Len 活跃会话数量
func (st *Set) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// DestroyAll 无条件销毁所有会话
//
// 返回第一个销毁错误，但继续销毁其余会话。
func (st *Set) DestroyAll() error {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reset 清空会话集，使 store 可以在关闭后复用
func (st *Set) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[*Session]struct{})
}
