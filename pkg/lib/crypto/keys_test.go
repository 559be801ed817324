package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/pkg/types"
)

// TestGenerateKeyPair 测试密钥对生成
func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	require.NoError(t, kp.Validate())

	assert.Len(t, []byte(kp.PublicKey), types.KeySize)
	assert.Len(t, []byte(kp.SecretKey), types.SecretKeySize)

	// 两次生成互不相同
	kp2, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	assert.False(t, kp.PublicKey.Equal(kp2.PublicKey))
}

// TestKeyPairFromSecret 测试从私钥恢复密钥对
func TestKeyPairFromSecret(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	restored, err := KeyPairFromSecret(kp.SecretKey)
	require.NoError(t, err)
	assert.True(t, kp.PublicKey.Equal(restored.PublicKey))

	_, err = KeyPairFromSecret(types.Key{1, 2, 3})
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}

// TestDiscoveryKey 测试发现密钥派生
func TestDiscoveryKey(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	dk := DiscoveryKey(kp.PublicKey)
	assert.Len(t, []byte(dk), types.KeySize)

	// 确定性
	assert.True(t, dk.Equal(DiscoveryKey(kp.PublicKey)))

	// 不同公钥派生不同发现密钥
	kp2, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	assert.False(t, dk.Equal(DiscoveryKey(kp2.PublicKey)))

	// 发现密钥不等于公钥本身
	assert.False(t, dk.Equal(kp.PublicKey))
}

// TestCapabilityKey 测试能力密钥与发现密钥互不相同
func TestCapabilityKey(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	ck := CapabilityKey(kp.PublicKey)
	assert.Len(t, []byte(ck), types.KeySize)
	assert.False(t, ck.Equal(DiscoveryKey(kp.PublicKey)))
}
