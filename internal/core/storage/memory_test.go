package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
)

// TestMemoryEngine_RoundTrip 测试内存引擎读写往返
func TestMemoryEngine_RoundTrip(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close() //nolint:errcheck

	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver("", "default"),
		Key:             kp.PublicKey,
		SecretKey:       kp.SecretKey,
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))

	length, err := l.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), length)

	block, err := l.Get(testContext(t), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), block)
}

// TestMemoryEngine_SharedState 同一存储根的两个句柄共享数据
func TestMemoryEngine_SharedState(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close() //nolint:errcheck

	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)
	cfg := interfaces.LogConfig{
		Resolver:        NewResolver("", "default"),
		Key:             kp.PublicKey,
		SecretKey:       kp.SecretKey,
		CreateIfMissing: true,
	}

	first, err := engine.OpenLog(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Ready(testContext(t)))
	_, err = first.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, first.Close(testContext(t)))

	second, err := engine.OpenLog(interfaces.LogConfig{
		Resolver: NewResolver("", "default"),
	})
	require.NoError(t, err)
	require.NoError(t, second.Ready(testContext(t)))
	assert.Equal(t, uint64(1), second.Length())
}

// TestMemoryEngine_GeneratedIdentity 无密钥创建时引擎生成身份并随存储保留
func TestMemoryEngine_GeneratedIdentity(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close() //nolint:errcheck

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver("", "logs"),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))
	assert.NotEmpty(t, l.Key())
	assert.True(t, l.Writable())

	// 重开得到同一身份
	reopened, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver("", "logs"),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, reopened.Ready(testContext(t)))
	assert.True(t, l.Key().Equal(reopened.Key()))
}

// TestMemoryEngine_DiscoveryMiss 发现模式未命中
func TestMemoryEngine_DiscoveryMiss(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close() //nolint:errcheck

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver("", "cores/ab/cd/abcd"),
		CreateIfMissing: false,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, l.Ready(testContext(t)), interfaces.ErrLogNotFound)
}

// TestMemoryEngine_SeedAllowsDiscovery 预置日志后发现模式可命中
func TestMemoryEngine_SeedAllowsDiscovery(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close() //nolint:errcheck

	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	root := "cores/ab/cd/abcd"
	engine.Seed(NewResolver("", root)("."), kp, []byte("seeded"))

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver("", root),
		CreateIfMissing: false,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))
	assert.True(t, kp.PublicKey.Equal(l.Key()))
	assert.Equal(t, uint64(1), l.Length())
}
