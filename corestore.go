package corestore

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/internal/core/session"
	"github.com/dep2p/go-corestore/internal/core/storage"
	"github.com/dep2p/go-corestore/internal/core/streammux"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
)

var logger = log.Logger("corestore")

// Session 一条活跃复制会话的句柄
type Session interface {
	// Stream 底层复制流
	Stream() interfaces.Stream

	// Close 销毁会话并将其移出活跃集（幂等）
	Close() error
}

// Info 存储概要
//
// 未设置默认核心时密钥字段为空。
type Info struct {
	// ID 存储实例标识
	ID string `json:"id"`

	// DefaultKey 默认核心公钥（十六进制）
	DefaultKey string `json:"defaultKey,omitempty"`

	// DiscoveryKey 默认核心发现密钥（十六进制）
	DiscoveryKey string `json:"discoveryKey,omitempty"`

	// Cores 当前注册的核心数
	Cores int `json:"cores"`
}

// Store 核心存储
//
// 所有方法都可安全并发调用。
type Store struct {
	id   string
	base string
	opts *options

	engine   interfaces.Engine
	registry *registry.Registry
	sessions *session.Set
}

// Open 打开一个核心存储
//
// base 为存储根目录；所有核心的存储根都在其下派生。
func Open(base string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	engine := o.engine
	if engine == nil {
		engine = storage.NewBadgerEngine()
	}

	reg := registry.New(engine, base)
	set := session.NewSet(reg)
	reg.SetInjector(set)

	s := &Store{
		id:       uuid.New().String(),
		base:     base,
		opts:     o,
		engine:   engine,
		registry: reg,
		sessions: set,
	}

	logger.Debug("存储已打开",
		"id", log.TruncateID(s.id, 8),
		"base", base)
	return s, nil
}

// ID 存储实例标识
func (s *Store) ID() string {
	return s.id
}

// Get 按选项打开（或复用）一个核心
//
// 同一密钥材料的任何表示形式都收敛到同一个句柄。返回的句柄
// 可能尚未就绪；用 Ready 等待。发现模式未命中不在此报告，
// 而是体现在句柄的 Ready 错误与 Errored 状态上。
func (s *Store) Get(opts CoreOptions) (interfaces.CoreHandle, error) {
	return s.registry.GetOrCreate(opts.request())
}

// Default 打开（或复用）默认核心
//
// 不携带显式密钥时生成全新密钥对并登记为默认；重复调用
// 返回同一句柄。
func (s *Store) Default(opts CoreOptions) (interfaces.CoreHandle, error) {
	return s.registry.GetDefault(opts.request())
}

// Replicate 在一个双工连接上打开复制会话
//
// 会话附加当前注册的全部核心，并跟随之后就绪的新核心；
// 对端通告的未知发现密钥触发本地发现模式打开。加密会话
// 需要默认核心作为能力锚点，否则以 ErrNoDefaultCore 失败。
func (s *Store) Replicate(conn io.ReadWriteCloser, opts ReplicateOptions) (Session, error) {
	streamOpts := interfaces.StreamOptions{
		Initiator: opts.Initiator,
		Encrypt:   opts.Encrypt || s.opts.encrypt,
		KeepAlive: opts.KeepAlive || s.opts.keepAlive,
	}

	var anchor interfaces.Log
	if def := s.registry.Default(); def != nil {
		anchor = def.Log()
	}

	factory := func(anchorLog interfaces.Log, so interfaces.StreamOptions) (interfaces.Stream, error) {
		return streammux.New(conn, streammux.Config{
			Initiator: so.Initiator,
			Encrypt:   so.Encrypt,
			KeepAlive: so.KeepAlive,
			Anchor:    anchorLog,
		})
	}

	cores := s.registry.Cores()
	handles := make([]interfaces.CoreHandle, 0, len(cores))
	for _, core := range cores {
		handles = append(handles, core)
	}

	sess, err := s.sessions.Open(anchor, factory, streamOpts, handles)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// List 当前注册的核心
//
// 键为规范索引，就绪的核心同时出现在公钥与发现密钥的十六
// 进制键下。返回防御性拷贝。
func (s *Store) List() map[string]interfaces.CoreHandle {
	return s.registry.List()
}

// IsDefaultSet 是否已设置默认核心
func (s *Store) IsDefaultSet() bool {
	return s.registry.Default() != nil
}

// Info 存储概要
//
// 未设置默认核心时密钥字段为空，不报错。
func (s *Store) Info() Info {
	info := Info{
		ID:    s.id,
		Cores: len(s.registry.Cores()),
	}
	if def := s.registry.Default(); def != nil {
		info.DefaultKey = def.Key().Hex()
		info.DiscoveryKey = def.DiscoveryKey().Hex()
	}
	return info
}

// Close 关闭存储
//
// 先无条件销毁所有活跃会话，再关闭所有尚未关闭的核心；
// 过程中遇到的第一个错误会被返回，其余关闭照常进行。
// 结束后注册表与会话集清空，存储可以继续使用。
func (s *Store) Close(ctx context.Context) error {
	sessErr := s.sessions.DestroyAll()
	coreErr := s.registry.CloseAll(ctx)

	s.sessions.Reset()
	s.registry.Reset()

	logger.Debug("存储已关闭",
		"id", log.TruncateID(s.id, 8))

	if sessErr != nil {
		return sessErr
	}
	return coreErr
}
