package session

import "errors"

var (
	// ErrEncryptionWithoutDefault 请求加密但没有默认核心
	//
	// 加密需要锚定在默认身份上的能力上下文。
	ErrEncryptionWithoutDefault = errors.New("encrypted replication requires a default core")

	// ErrSetClosed 会话集已整体销毁
	ErrSetClosed = errors.New("session set closed")
)
