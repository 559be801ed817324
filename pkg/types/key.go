package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// 密钥大小常量
const (
	// KeySize 公钥/发现密钥大小（32 字节）
	KeySize = 32
	// SecretKeySize 私钥大小（64 字节）
	SecretKeySize = 64
)

// Key 原始密钥字节
//
// 公钥、发现密钥和私钥统一用 Key 表示，按长度区分。
// 对外展示时使用十六进制编码（见 Hex/DecodeKey）。
type Key []byte

// Hex 返回密钥的十六进制编码
func (k Key) Hex() string {
	return hex.EncodeToString(k)
}

// Equal 比较两个密钥是否相等
func (k Key) Equal(other Key) bool {
	return bytes.Equal(k, other)
}

// IsZero 检查密钥是否为空
func (k Key) IsZero() bool {
	return len(k) == 0
}

// Clone 返回密钥的副本
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// String 实现 fmt.Stringer，返回十六进制编码
func (k Key) String() string {
	return k.Hex()
}

// DecodeKey 从十六进制字符串解码密钥
//
// 解码是确定性且无损的；非法输入返回包装了 ErrInvalidKey 的错误。
func DecodeKey(s string) (Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}
	return Key(raw), nil
}

// KeyPair 密钥对
type KeyPair struct {
	// PublicKey 公钥（32 字节）
	PublicKey Key
	// SecretKey 私钥（64 字节，可为空表示只读）
	SecretKey Key
}

// Validate 校验密钥对的长度
func (kp *KeyPair) Validate() error {
	if len(kp.PublicKey) != KeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(kp.PublicKey))
	}
	if len(kp.SecretKey) != 0 && len(kp.SecretKey) != SecretKeySize {
		return fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrInvalidKey, SecretKeySize, len(kp.SecretKey))
	}
	return nil
}
