package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/dep2p/go-corestore/internal/core/keyindex"
	"github.com/dep2p/go-corestore/internal/core/storage"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/registry")

// 确保实现了接口
var _ interfaces.CoreOpener = (*Registry)(nil)

// Registry 核心注册表
//
// 所有注册表方法都可安全并发调用；互斥锁只保护映射本身，
// 从不跨越异步就绪等待。
type Registry struct {
	mu sync.Mutex

	engine interfaces.Engine
	base   string

	// cores 规范索引 → 句柄；就绪的核心同时登记在公钥与
	// 发现密钥的十六进制之下
	cores map[string]*Core
	def   *Core

	// injector 核心就绪后注入活跃会话的接线（由 store 设置）
	injector interfaces.CoreInjector

	watchers []*watcher
}

// New 创建注册表
func New(engine interfaces.Engine, base string) *Registry {
	return &Registry{
		engine: engine,
		base:   base,
		cores:  make(map[string]*Core),
	}
}

// SetInjector 设置会话集一侧的注入接线
func (r *Registry) SetInjector(inj interfaces.CoreInjector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injector = inj
}

// GetOrCreate 按请求返回已有句柄或惰性创建新句柄
//
// 同步返回；就绪是异步的。已存在的句柄会被再次注入所有
// 活跃会话（幂等调和：先于会话创建的核心也要最终附加上去）。
func (r *Registry) GetOrCreate(req *keyindex.Request) (*Core, error) {
	res, err := keyindex.Resolve(req)
	if err != nil {
		return nil, err
	}
	return r.getOrCreate(res)
}

func (r *Registry) getOrCreate(res *keyindex.Result) (*Core, error) {
	r.mu.Lock()

	if existing, ok := r.cores[res.Index]; ok {
		inj := r.injector
		r.mu.Unlock()
		if inj != nil {
			inj.Inject(existing)
		}
		return existing, nil
	}

	root := storage.RootFor(res.Index, res.KeyAddressed)
	logConfig := interfaces.LogConfig{
		Resolver:        storage.NewResolver(r.base, root),
		Key:             res.Key,
		SecretKey:       res.SecretKey,
		CreateIfMissing: !res.DiscoveryOnly,
	}

	l, err := r.engine.OpenLog(logConfig)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	core := newCore(res.Index, l, res.DiscoveryOnly)
	r.cores[res.Index] = core
	r.mu.Unlock()

	logger.Debug("核心已创建", "index", log.TruncateID(res.Index, 8),
		"discoveryOnly", res.DiscoveryOnly)

	go r.watchReady(core)
	return core, nil
}

// watchReady 观察单个核心的就绪结果
//
// 成功：双重登记、通知观察者、注入所有活跃会话，再交付就绪。
// 失败：从注册表移除；发现模式未命中是预期结果，只记 debug。
func (r *Registry) watchReady(core *Core) {
	err := core.log.Ready(context.Background())
	if err != nil {
		r.mu.Lock()
		if r.cores[core.index] == core {
			delete(r.cores, core.index)
		}
		r.mu.Unlock()

		if core.discoveryOnly && errors.Is(err, interfaces.ErrLogNotFound) {
			logger.Debug("发现查找未命中", "index", log.TruncateID(core.index, 8))
		} else {
			logger.Warn("核心就绪失败", "index", log.TruncateID(core.index, 8), "error", err)
		}
		core.fail(err)
		return
	}

	r.mu.Lock()
	r.cores[core.Key().Hex()] = core
	r.cores[core.DiscoveryKey().Hex()] = core
	inj := r.injector
	watchers := make([]*watcher, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	core.succeed()

	for _, w := range watchers {
		w.notify(core)
	}
	if inj != nil {
		inj.Inject(core)
	}
}

// GetDefault 返回默认核心，必要时创建
//
// 幂等：默认核心已存在时无条件返回（忽略新请求的参数）。
// 仅当请求不携带显式密钥时才标记默认寻址。
func (r *Registry) GetDefault(req *keyindex.Request) (*Core, error) {
	r.mu.Lock()
	if r.def != nil {
		def := r.def
		r.mu.Unlock()
		return def, nil
	}
	r.mu.Unlock()

	if !req.HasExplicitKey() {
		req.Default = true
	}

	core, err := r.GetOrCreate(req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.def == nil {
		r.def = core
	}
	def := r.def
	r.mu.Unlock()
	return def, nil
}

// Default 当前默认核心（未设置时为 nil）
func (r *Registry) Default() *Core {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def
}

// OpenByDiscoveryKey 以发现模式物化本地核心
//
// 会话集收到对端通告时调用（CoreOpener 接口）。
func (r *Registry) OpenByDiscoveryKey(dk types.Key) (interfaces.CoreHandle, error) {
	return r.GetOrCreate(&keyindex.Request{DiscoveryKey: dk})
}

// List 返回注册表的时点副本
//
// 调用方对副本的修改不影响注册表本身。
func (r *Registry) List() map[string]interfaces.CoreHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]interfaces.CoreHandle, len(r.cores))
	for index, core := range r.cores {
		out[index] = core
	}
	return out
}

// Cores 去重后的句柄列表（附加到新会话时使用）
func (r *Registry) Cores() []*Core {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*Core]struct{}, len(r.cores))
	out := make([]*Core, 0, len(r.cores))
	for _, core := range r.cores {
		if _, ok := seen[core]; ok {
			continue
		}
		seen[core] = struct{}{}
		out = append(out, core)
	}
	return out
}

// CloseAll 关闭所有未关闭的核心
//
// 返回遇到的第一个错误，但继续关闭其余核心。
func (r *Registry) CloseAll(ctx context.Context) error {
	cores := r.Cores()

	var firstErr error
	for _, core := range cores {
		if err := core.close(ctx); err != nil {
			logger.Warn("关闭核心失败", "index", log.TruncateID(core.index, 8), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Reset 清空注册表，使 store 可以在关闭后复用
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cores = make(map[string]*Core)
	r.def = nil
}
