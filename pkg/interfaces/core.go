package interfaces

import (
	"context"

	"github.com/dep2p/go-corestore/pkg/types"
)

// CoreState 核心句柄生命周期状态
type CoreState int32

const (
	// CoreStatePending 已创建，等待底层日志就绪
	CoreStatePending CoreState = iota
	// CoreStateReady 底层日志已确认可用
	CoreStateReady
	// CoreStateErrored 就绪失败（发现模式未命中为预期结果）
	CoreStateErrored
	// CoreStateClosed 已显式关闭
	CoreStateClosed
)

// String 返回状态名
func (s CoreState) String() string {
	switch s {
	case CoreStatePending:
		return "pending"
	case CoreStateReady:
		return "ready"
	case CoreStateErrored:
		return "errored"
	case CoreStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CoreHandle 注册表对外暴露的核心句柄
//
// 句柄的生命周期由注册表独占；会话只持有共享读引用。
type CoreHandle interface {
	// Key 公钥（就绪前可能为空）
	Key() types.Key

	// DiscoveryKey 发现密钥（就绪前可能为空）
	DiscoveryKey() types.Key

	// Ready 阻塞等待句柄就绪
	//
	// 发现模式未命中返回 ErrLogNotFound，真实存储故障返回
	// 引擎错误。
	Ready(ctx context.Context) error

	// State 当前生命周期状态
	State() CoreState

	// Writable 本方是否可以追加
	Writable() bool

	// Log 底层日志（就绪前调用引擎相关操作由调用方自行负责）
	Log() Log
}

// CoreInjector 会话集一侧的接线接口
//
// 注册表在核心首次就绪时调用，把核心注入到所有活跃会话；
// 注入是幂等的，已附加的 (core, session) 对不会重复附加。
type CoreInjector interface {
	Inject(core CoreHandle)
}

// CoreOpener 注册表一侧的接线接口
//
// 会话集收到对端通告的未知发现密钥时调用，以发现模式
// 物化本地核心。
type CoreOpener interface {
	OpenByDiscoveryKey(dk types.Key) (CoreHandle, error)
}
