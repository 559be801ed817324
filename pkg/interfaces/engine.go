package interfaces

import (
	"context"
	"errors"

	"github.com/dep2p/go-corestore/pkg/types"
)

var (
	// ErrLogNotFound 日志在本地存储中不存在
	//
	// 仅在 CreateIfMissing=false（发现模式打开）时出现。
	// 对注册表而言这是预期结果而非故障：句柄进入 Errored 状态，
	// 不注册、不附加，也不向调用方抛出。
	ErrLogNotFound = errors.New("log not found in storage")

	// ErrLogClosed 日志已关闭
	ErrLogClosed = errors.New("log closed")
)

// StorageResolver 存储路径解析器
//
// 将日志内部的相对文件名映射到计算出的存储根之下的具体位置。
type StorageResolver func(name string) string

// LogConfig 打开日志的配置
type LogConfig struct {
	// Resolver 存储路径解析器
	Resolver StorageResolver

	// Key 公钥（发现模式打开时为空，就绪后由引擎从存储恢复）
	Key types.Key

	// SecretKey 私钥（只读日志为空）
	SecretKey types.Key

	// CreateIfMissing 日志不存在时是否创建
	//
	// 发现模式打开时为 false：仅查找可能存在的日志，
	// 不存在则就绪失败于 ErrLogNotFound。
	CreateIfMissing bool
}

// Engine 追加日志引擎
//
// 负责单个日志的持久化存储与生命周期。OpenLog 同步返回句柄，
// 就绪是异步的（通过 Log.Ready 等待）。
type Engine interface {
	// OpenLog 按配置打开（或创建）一个日志
	OpenLog(cfg LogConfig) (Log, error)

	// Close 关闭引擎本身
	Close() error
}

// Log 一个追加日志实例
type Log interface {
	// Ready 阻塞等待日志就绪
	//
	// 就绪即密钥已解析、存储已打开。发现模式下日志不存在时
	// 返回 ErrLogNotFound；其他错误为真实存储故障。
	Ready(ctx context.Context) error

	// Key 公钥（就绪前可能为空）
	Key() types.Key

	// DiscoveryKey 发现密钥（就绪前可能为空）
	DiscoveryKey() types.Key

	// Writable 本方是否持有私钥可以追加
	Writable() bool

	// Length 当前日志长度（块数）
	Length() uint64

	// Append 追加数据块，返回追加后的长度
	Append(data ...[]byte) (uint64, error)

	// Get 读取指定序号的数据块
	Get(ctx context.Context, seq uint64) ([]byte, error)

	// Close 关闭日志并等待落盘
	Close(ctx context.Context) error
}
