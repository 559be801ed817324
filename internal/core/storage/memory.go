package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// 确保实现了接口
var (
	_ interfaces.Engine = (*MemoryEngine)(nil)
	_ interfaces.Log    = (*memoryLog)(nil)
)

// MemoryEngine 内存追加日志引擎
//
// 与 BadgerEngine 语义一致（异步就绪、发现模式未命中），
// 数据以存储根为键保存在引擎内，store 关闭重开后仍可找到。
// 用于测试。
type MemoryEngine struct {
	mu     sync.Mutex
	closed bool
	// states 以解析出的存储根为键
	states map[string]*memoryState
}

// memoryState 一个日志的共享数据
type memoryState struct {
	key    types.Key
	secret types.Key
	blocks [][]byte
}

// NewMemoryEngine 创建内存引擎
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		states: make(map[string]*memoryState),
	}
}

// OpenLog 打开（或创建）一个日志
func (e *MemoryEngine) OpenLog(cfg interfaces.LogConfig) (interfaces.Log, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if cfg.Resolver == nil {
		return nil, ErrMissingResolver
	}

	l := &memoryLog{
		engine:  e,
		cfg:     cfg,
		root:    cfg.Resolver("."),
		readyCh: make(chan struct{}),
	}
	go l.open()
	return l, nil
}

// Close 关闭引擎并清空数据
func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.states = make(map[string]*memoryState)
	return nil
}

// lookup 查找或创建存储根对应的共享数据
func (e *MemoryEngine) lookup(root string, cfg interfaces.LogConfig) (*memoryState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	state, ok := e.states[root]
	if !ok {
		if !cfg.CreateIfMissing {
			return nil, interfaces.ErrLogNotFound
		}

		key, secret := cfg.Key.Clone(), cfg.SecretKey.Clone()
		if key.IsZero() {
			// 名称/默认寻址的首次打开：身份在此生成并随存储保留
			kp, err := crypto.GenerateKeyPair(nil)
			if err != nil {
				return nil, fmt.Errorf("generate keypair: %w", err)
			}
			key, secret = kp.PublicKey, kp.SecretKey
		}
		state = &memoryState{
			key:    key,
			secret: secret,
		}
		e.states[root] = state
		return state, nil
	}

	if !cfg.Key.IsZero() && !state.key.Equal(cfg.Key) {
		return nil, fmt.Errorf("stored key does not match requested key")
	}
	if state.secret.IsZero() && !cfg.SecretKey.IsZero() {
		state.secret = cfg.SecretKey.Clone()
	}
	return state, nil
}

// Seed 预置一个日志（测试辅助）
//
// 模拟"本地磁盘上已存在"的日志，使发现模式查找可以命中。
func (e *MemoryEngine) Seed(root string, kp *types.KeyPair, blocks ...[]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[root] = &memoryState{
		key:    kp.PublicKey.Clone(),
		secret: kp.SecretKey.Clone(),
		blocks: blocks,
	}
}

// ============================================================================
// memoryLog
// ============================================================================

// memoryLog 内存日志句柄
type memoryLog struct {
	engine *MemoryEngine
	cfg    interfaces.LogConfig
	root   string

	readyCh  chan struct{}
	readyErr error

	mu        sync.Mutex
	state     *memoryState
	key       types.Key
	discovery types.Key
	closed    bool
}

func (l *memoryLog) open() {
	state, err := l.engine.lookup(l.root, l.cfg)
	if err != nil {
		l.readyErr = err
		close(l.readyCh)
		return
	}

	l.mu.Lock()
	l.state = state
	l.key = state.key
	l.discovery = crypto.DiscoveryKey(state.key)
	l.mu.Unlock()
	close(l.readyCh)
}

// Ready 阻塞等待日志就绪
func (l *memoryLog) Ready(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.readyCh:
		return l.readyErr
	}
}

func (l *memoryLog) Key() types.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key
}

func (l *memoryLog) DiscoveryKey() types.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discovery
}

func (l *memoryLog) Writable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return false
	}
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return !l.state.secret.IsZero()
}

func (l *memoryLog) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return 0
	}
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return uint64(len(l.state.blocks))
}

func (l *memoryLog) Append(data ...[]byte) (uint64, error) {
	if err := l.Ready(context.Background()); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, interfaces.ErrLogClosed
	}

	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	for _, block := range data {
		l.state.blocks = append(l.state.blocks, append([]byte(nil), block...))
	}
	return uint64(len(l.state.blocks)), nil
}

func (l *memoryLog) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := l.Ready(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, interfaces.ErrLogClosed
	}

	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	if seq >= uint64(len(l.state.blocks)) {
		return nil, fmt.Errorf("%w: seq %d, length %d", ErrBlockOutOfRange, seq, len(l.state.blocks))
	}
	return append([]byte(nil), l.state.blocks[seq]...), nil
}

func (l *memoryLog) Close(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.readyCh:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
