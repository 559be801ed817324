// Package crypto 提供 corestore 的密钥原语
//
// 包含 Ed25519 密钥对生成、从私钥恢复密钥对，以及
// 基于 BLAKE3 带密钥哈希的发现密钥/能力密钥派生。
package crypto

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-corestore/pkg/types"
)

// 派生命名空间
//
// 发现密钥与能力密钥使用同一构造（以公钥为哈希密钥），
// 通过不同的命名空间字面量区分用途。
const (
	discoveryNamespace  = "corestore/discovery"
	capabilityNamespace = "corestore/capability"
)

// GenerateKeyPair 生成新的 Ed25519 密钥对
//
// 参数：
//   - src: 随机源，nil 时使用 crypto/rand
//
// 返回：
//   - *types.KeyPair: 公钥 32 字节，私钥 64 字节
//   - error: 生成错误
func GenerateKeyPair(src io.Reader) (*types.KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(src)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &types.KeyPair{
		PublicKey: types.Key(pub),
		SecretKey: types.Key(priv),
	}, nil
}

// KeyPairFromSecret 从 64 字节私钥恢复完整密钥对
//
// Ed25519 私钥的后 32 字节即为公钥。
func KeyPairFromSecret(secret types.Key) (*types.KeyPair, error) {
	if len(secret) != types.SecretKeySize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d",
			types.ErrInvalidKey, types.SecretKeySize, len(secret))
	}
	priv := ed25519.PrivateKey(secret)
	pub := priv.Public().(ed25519.PublicKey) //nolint:errcheck // 类型断言安全
	return &types.KeyPair{
		PublicKey: types.Key(pub).Clone(),
		SecretKey: secret.Clone(),
	}, nil
}

// DiscoveryKey 从公钥派生发现密钥
//
// 单向派生：以公钥作为 BLAKE3 的哈希密钥，对发现命名空间求值。
// 发现密钥可公开用于查找，而不暴露公钥本身。
func DiscoveryKey(publicKey types.Key) types.Key {
	return deriveKey(publicKey, discoveryNamespace)
}

// CapabilityKey 从公钥派生能力密钥
//
// 用作加密复制会话的预共享密钥：只有知道日志公钥的双方
// 才能完成握手。
func CapabilityKey(publicKey types.Key) types.Key {
	return deriveKey(publicKey, capabilityNamespace)
}

// deriveKey 带密钥 BLAKE3 派生
func deriveKey(publicKey types.Key, namespace string) types.Key {
	key := make([]byte, types.KeySize)
	copy(key, publicKey)

	h := blake3.New(types.KeySize, key)
	h.Write([]byte(namespace)) //nolint:errcheck // hash.Write 不会失败
	return types.Key(h.Sum(nil))
}
