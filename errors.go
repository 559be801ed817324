package corestore

import (
	"github.com/dep2p/go-corestore/internal/core/session"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

var (
	// ErrNoDefaultCore 加密复制需要默认核心作为能力锚点
	ErrNoDefaultCore = session.ErrEncryptionWithoutDefault

	// ErrInvalidKey 文本密钥解码失败
	ErrInvalidKey = types.ErrInvalidKey

	// ErrLogNotFound 发现模式查找未命中
	//
	// 只会出现在核心句柄的 Ready 上；Get/Default 本身不报告。
	ErrLogNotFound = interfaces.ErrLogNotFound
)
