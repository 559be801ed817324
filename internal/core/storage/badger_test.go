package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestBadgerEngine_OpenAppendGet 测试打开、追加、读取往返
func TestBadgerEngine_OpenAppendGet(t *testing.T) {
	engine := NewBadgerEngine()
	defer engine.Close() //nolint:errcheck

	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver(t.TempDir(), "default"),
		Key:             kp.PublicKey,
		SecretKey:       kp.SecretKey,
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))

	assert.True(t, kp.PublicKey.Equal(l.Key()))
	assert.True(t, crypto.DiscoveryKey(kp.PublicKey).Equal(l.DiscoveryKey()))
	assert.True(t, l.Writable())
	assert.Equal(t, uint64(0), l.Length())

	length, err := l.Append([]byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), length)

	block, err := l.Get(testContext(t), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), block)

	_, err = l.Get(testContext(t), 2)
	assert.ErrorIs(t, err, ErrBlockOutOfRange)

	require.NoError(t, l.Close(testContext(t)))
}

// TestBadgerEngine_Reopen 测试密钥元数据与长度跨打开持久化
func TestBadgerEngine_Reopen(t *testing.T) {
	engine := NewBadgerEngine()
	defer engine.Close() //nolint:errcheck

	base := t.TempDir()
	kp, err := crypto.GenerateKeyPair(nil)
	require.NoError(t, err)

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver(base, "default"),
		Key:             kp.PublicKey,
		SecretKey:       kp.SecretKey,
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))

	_, err = l.Append([]byte("block"))
	require.NoError(t, err)
	require.NoError(t, l.Close(testContext(t)))

	// 无密钥重开：从元数据恢复
	reopened, err := engine.OpenLog(interfaces.LogConfig{
		Resolver: NewResolver(base, "default"),
	})
	require.NoError(t, err)
	require.NoError(t, reopened.Ready(testContext(t)))

	assert.True(t, kp.PublicKey.Equal(reopened.Key()))
	assert.True(t, reopened.Writable())
	assert.Equal(t, uint64(1), reopened.Length())
	require.NoError(t, reopened.Close(testContext(t)))
}

// TestBadgerEngine_GeneratedIdentity 无密钥创建时引擎生成身份并落盘
func TestBadgerEngine_GeneratedIdentity(t *testing.T) {
	engine := NewBadgerEngine()
	defer engine.Close() //nolint:errcheck

	base := t.TempDir()
	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver(base, "logs"),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Ready(testContext(t)))
	assert.NotEmpty(t, l.Key())
	assert.True(t, l.Writable())
	require.NoError(t, l.Close(testContext(t)))

	// 重开恢复同一身份
	reopened, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver(base, "logs"),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	require.NoError(t, reopened.Ready(testContext(t)))
	assert.True(t, l.Key().Equal(reopened.Key()))
	require.NoError(t, reopened.Close(testContext(t)))
}

// TestBadgerEngine_DiscoveryMiss 发现模式未命中返回 ErrLogNotFound
func TestBadgerEngine_DiscoveryMiss(t *testing.T) {
	engine := NewBadgerEngine()
	defer engine.Close() //nolint:errcheck

	l, err := engine.OpenLog(interfaces.LogConfig{
		Resolver:        NewResolver(t.TempDir(), "cores/ab/cd/abcd"),
		CreateIfMissing: false,
	})
	require.NoError(t, err)

	err = l.Ready(testContext(t))
	assert.ErrorIs(t, err, interfaces.ErrLogNotFound)

	// 未命中的句柄关闭不报错
	require.NoError(t, l.Close(testContext(t)))
}

// TestBadgerEngine_ClosedEngine 关闭后的引擎拒绝打开
func TestBadgerEngine_ClosedEngine(t *testing.T) {
	engine := NewBadgerEngine()
	require.NoError(t, engine.Close())

	_, err := engine.OpenLog(interfaces.LogConfig{
		Resolver: NewResolver(t.TempDir(), "default"),
	})
	assert.ErrorIs(t, err, ErrEngineClosed)
}

// TestBadgerEngine_MissingResolver 缺少解析器立即失败
func TestBadgerEngine_MissingResolver(t *testing.T) {
	engine := NewBadgerEngine()
	defer engine.Close() //nolint:errcheck

	_, err := engine.OpenLog(interfaces.LogConfig{})
	assert.ErrorIs(t, err, ErrMissingResolver)
}
