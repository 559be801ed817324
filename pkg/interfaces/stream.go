package interfaces

import (
	"github.com/dep2p/go-corestore/pkg/types"
)

// Stream 一条多路复用的复制会话流
//
// 由复制流引擎实现。一条流承载零个或多个已附加的日志，
// 并向对端通告本方持有的发现密钥。
type Stream interface {
	// Replicate 将一个日志附加到本流并开始复制
	//
	// 对同一日志重复调用是调用方的错误；幂等保护由会话层
	// 的已附加集合承担。
	Replicate(log Log) error

	// Announcements 对端通告的未知发现密钥
	//
	// 本方每收到一个本地未附加的发现密钥，就向该通道发送一次。
	// 流销毁后通道关闭。
	Announcements() <-chan types.Key

	// Finished 本方主动结束时关闭
	Finished() <-chan struct{}

	// Ended 对端结束（控制流读到 EOF）时关闭
	Ended() <-chan struct{}

	// Closed 底层会话关闭时关闭
	Closed() <-chan struct{}

	// Destroy 销毁流及底层会话（幂等）
	Destroy() error
}

// StreamOptions 流配置
//
// 存储级默认值与单次 Replicate 调用的选项合并后传入流工厂。
type StreamOptions struct {
	// Initiator 本方是否为发起方
	Initiator bool

	// Encrypt 是否加密会话
	//
	// 加密需要默认核心作为能力锚点；无默认核心时 Replicate
	// 以配置错误失败。
	Encrypt bool

	// KeepAlive 是否启用底层会话保活
	KeepAlive bool
}

// StreamFactory 流工厂
//
// anchor 为默认核心的日志，用于能力/加密协商；可为 nil
// 表示裸流（此时 opts.Encrypt 必须为 false）。
type StreamFactory func(anchor Log, opts StreamOptions) (Stream, error)
