package types

import "errors"

var (
	// ErrInvalidKey 无效的密钥（非法十六进制或长度错误）
	ErrInvalidKey = errors.New("invalid key")
)
