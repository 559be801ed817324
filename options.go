package corestore

import (
	"github.com/dep2p/go-corestore/internal/core/keyindex"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
// 存储级选项
// ============================================================================

// options 存储配置
type options struct {
	// engine 日志引擎（默认 Badger）
	engine interfaces.Engine

	// encrypt 复制会话的存储级加密默认值
	encrypt bool

	// keepAlive 复制会话的存储级保活默认值
	keepAlive bool
}

// defaultOptions 返回默认配置
func defaultOptions() *options {
	return &options{}
}

// Option 存储配置选项
type Option func(*options) error

// WithEngine 注入自定义日志引擎
func WithEngine(engine interfaces.Engine) Option {
	return func(o *options) error {
		o.engine = engine
		return nil
	}
}

// WithEncryption 默认加密所有复制会话
func WithEncryption() Option {
	return func(o *options) error {
		o.encrypt = true
		return nil
	}
}

// WithKeepAlive 默认为复制会话开启底层保活
func WithKeepAlive() Option {
	return func(o *options) error {
		o.keepAlive = true
		return nil
	}
}

// ============================================================================
// 调用级选项
// ============================================================================

// CoreOptions 打开核心的选项
//
// 各字段互为变体：默认标记、符号名、密钥材料（二进制或十六
// 进制文本）任取其一；同时给出多种密钥材料时按公钥语义合并。
type CoreOptions struct {
	// Default 请求默认核心
	Default bool

	// Name 符号名
	Name string

	// Key 公钥（二进制）
	Key types.Key

	// KeyHex 公钥（十六进制文本）
	KeyHex string

	// DiscoveryKey 发现密钥（二进制）
	DiscoveryKey types.Key

	// DiscoveryKeyHex 发现密钥（十六进制文本）
	DiscoveryKeyHex string

	// SecretKey 私钥
	SecretKey types.Key

	// KeyPair 完整密钥对
	KeyPair *types.KeyPair
}

// request 转换为索引器请求
func (o CoreOptions) request() *keyindex.Request {
	return &keyindex.Request{
		Default:         o.Default,
		Name:            o.Name,
		Key:             o.Key,
		KeyHex:          o.KeyHex,
		DiscoveryKey:    o.DiscoveryKey,
		DiscoveryKeyHex: o.DiscoveryKeyHex,
		SecretKey:       o.SecretKey,
		KeyPair:         o.KeyPair,
	}
}

// ReplicateOptions 打开复制会话的选项
//
// Encrypt 与 KeepAlive 同存储级默认值按或合并。
type ReplicateOptions struct {
	// Initiator 本方是否为发起方
	Initiator bool

	// Encrypt 加密本次会话
	Encrypt bool

	// KeepAlive 为本次会话开启底层保活
	KeepAlive bool
}
