package keyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// TestResolve_Default 测试默认标记解析
func TestResolve_Default(t *testing.T) {
	res, err := Resolve(&Request{Default: true})
	require.NoError(t, err)
	assert.Equal(t, DefaultIndex, res.Index)
	assert.True(t, res.Key.IsZero())
	assert.False(t, res.DiscoveryOnly)
}

// TestResolve_DefaultWithKey 默认标记携带显式密钥时按密钥寻址
func TestResolve_DefaultWithKey(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	res, err := Resolve(&Request{Default: true, Key: kp.PublicKey})
	require.NoError(t, err)
	assert.Equal(t, crypto.DiscoveryKey(kp.PublicKey).Hex(), res.Index)
}

// TestResolve_Name 测试符号名解析
func TestResolve_Name(t *testing.T) {
	res, err := Resolve(&Request{Name: "logs"})
	require.NoError(t, err)
	assert.Equal(t, "logs", res.Index)
	assert.True(t, res.Key.IsZero())
}

// TestResolve_FreshKeyPair 无密钥材料时生成新密钥对
func TestResolve_FreshKeyPair(t *testing.T) {
	res, err := Resolve(&Request{})
	require.NoError(t, err)

	require.Len(t, []byte(res.Key), types.KeySize)
	require.Len(t, []byte(res.SecretKey), types.SecretKeySize)
	assert.Equal(t, crypto.DiscoveryKey(res.Key).Hex(), res.Index)
	assert.False(t, res.DiscoveryOnly)
}

// TestResolve_CanonicalIndex 公钥与发现密钥两种入口收敛到同一索引
func TestResolve_CanonicalIndex(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)
	dk := crypto.DiscoveryKey(kp.PublicKey)

	byKey, err := Resolve(&Request{Key: kp.PublicKey})
	require.NoError(t, err)

	byKeyHex, err := Resolve(&Request{KeyHex: kp.PublicKey.Hex()})
	require.NoError(t, err)

	byDK, err := Resolve(&Request{DiscoveryKey: dk})
	require.NoError(t, err)

	byDKHex, err := Resolve(&Request{DiscoveryKeyHex: dk.Hex()})
	require.NoError(t, err)

	assert.Equal(t, dk.Hex(), byKey.Index)
	assert.Equal(t, byKey.Index, byKeyHex.Index)
	assert.Equal(t, byKey.Index, byDK.Index)
	assert.Equal(t, byKey.Index, byDKHex.Index)
}

// TestResolve_DiscoveryOnly 仅发现密钥的请求标记为发现模式
func TestResolve_DiscoveryOnly(t *testing.T) {
	dk := make(types.Key, types.KeySize)
	dk[0] = 0xab

	res, err := Resolve(&Request{DiscoveryKey: dk})
	require.NoError(t, err)
	assert.True(t, res.DiscoveryOnly)
	assert.True(t, res.Key.IsZero())

	// 发现密钥 + 公钥则不是发现模式
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)
	res, err = Resolve(&Request{DiscoveryKey: dk, Key: kp.PublicKey})
	require.NoError(t, err)
	assert.False(t, res.DiscoveryOnly)
	assert.Equal(t, dk.Hex(), res.Index)
}

// TestResolve_SecretKeyDerivesPublic 私钥单独给出时恢复公钥
func TestResolve_SecretKeyDerivesPublic(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	res, err := Resolve(&Request{SecretKey: kp.SecretKey})
	require.NoError(t, err)
	assert.True(t, kp.PublicKey.Equal(res.Key))
	assert.Equal(t, crypto.DiscoveryKey(kp.PublicKey).Hex(), res.Index)
}

// TestResolve_KeyPair 显式密钥对直接使用
func TestResolve_KeyPair(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	res, err := Resolve(&Request{KeyPair: kp})
	require.NoError(t, err)
	assert.True(t, kp.PublicKey.Equal(res.Key))
	assert.True(t, kp.SecretKey.Equal(res.SecretKey))
}

// TestResolve_DecodeErrors 非法文本密钥以 DecodeError 失败
func TestResolve_DecodeErrors(t *testing.T) {
	_, err := Resolve(&Request{KeyHex: "not-hex"})
	assert.ErrorIs(t, err, types.ErrInvalidKey)

	_, err = Resolve(&Request{DiscoveryKeyHex: "abcd"})
	assert.ErrorIs(t, err, types.ErrInvalidKey)

	_, err = Resolve(&Request{Key: types.Key{1, 2}})
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}
