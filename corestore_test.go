package corestore

import (
	"context"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/internal/core/storage"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// newMemoryStore 打开一个内存引擎存储
func newMemoryStore(t *testing.T, base string) (*Store, *storage.MemoryEngine) {
	t.Helper()
	engine := storage.NewMemoryEngine()
	store, err := Open(base, WithEngine(engine))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close(context.Background())
	})
	return store, engine
}

// newKeyPair 生成一对测试密钥
func newKeyPair(t *testing.T) *types.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	return kp
}

// requireReady 等待句柄就绪
func requireReady(t *testing.T, h interfaces.CoreHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.Ready(ctx))
}

// TestStoreDefault 验证默认核心的生成、幂等与概要信息
func TestStoreDefault(t *testing.T) {
	store, _ := newMemoryStore(t, "store")

	assert.False(t, store.IsDefaultSet())

	def, err := store.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, def)

	assert.True(t, store.IsDefaultSet())
	assert.True(t, def.Writable())
	assert.Len(t, def.Key(), types.KeySize)

	again, err := store.Default(CoreOptions{})
	require.NoError(t, err)
	assert.Same(t, def, again)

	info := store.Info()
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, def.Key().Hex(), info.DefaultKey)
	assert.Equal(t, def.DiscoveryKey().Hex(), info.DiscoveryKey)
}

// TestStoreInfoWithoutDefault 验证无默认核心时概要字段为空而不报错
func TestStoreInfoWithoutDefault(t *testing.T) {
	store, _ := newMemoryStore(t, "store")

	info := store.Info()
	assert.NotEmpty(t, info.ID)
	assert.Empty(t, info.DefaultKey)
	assert.Empty(t, info.DiscoveryKey)
	assert.Equal(t, 0, info.Cores)
}

// TestStoreGetConvergence 验证不同入口形式收敛到同一句柄
func TestStoreGetConvergence(t *testing.T) {
	store, _ := newMemoryStore(t, "store")
	kp := newKeyPair(t)

	byKey, err := store.Get(CoreOptions{KeyPair: kp})
	require.NoError(t, err)
	requireReady(t, byKey)

	byHex, err := store.Get(CoreOptions{KeyHex: kp.PublicKey.Hex()})
	require.NoError(t, err)
	assert.Same(t, byKey, byHex)

	dk := crypto.DiscoveryKey(kp.PublicKey)
	byDK, err := store.Get(CoreOptions{DiscoveryKey: dk})
	require.NoError(t, err)
	assert.Same(t, byKey, byDK)
}

// TestStoreGetInvalidHex 验证畸形文本密钥同步失败
func TestStoreGetInvalidHex(t *testing.T) {
	store, _ := newMemoryStore(t, "store")

	_, err := store.Get(CoreOptions{KeyHex: "not-hex"})
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Get(CoreOptions{DiscoveryKeyHex: "zz"})
	require.ErrorIs(t, err, ErrInvalidKey)
}

// TestStoreNamedCore 验证符号名核心使用独立的存储根
func TestStoreNamedCore(t *testing.T) {
	store, _ := newMemoryStore(t, "store")

	def, err := store.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, def)

	logs, err := store.Get(CoreOptions{Name: "logs"})
	require.NoError(t, err)
	requireReady(t, logs)

	assert.NotEqual(t, def.Key().Hex(), logs.Key().Hex())

	list := store.List()
	assert.Contains(t, list, "default")
	assert.Contains(t, list, "logs")
}

// TestStoreReplicateEncryptWithoutDefault 验证无默认核心时加密复制同步失败
func TestStoreReplicateEncryptWithoutDefault(t *testing.T) {
	store, _ := newMemoryStore(t, "store")

	connA, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	_, err := store.Replicate(connA, ReplicateOptions{Initiator: true, Encrypt: true})
	require.ErrorIs(t, err, ErrNoDefaultCore)
}

// replicatePair 在两个存储之间建立复制会话
func replicatePair(t *testing.T, a, b *Store, opts ReplicateOptions) (Session, Session) {
	t.Helper()

	connA, connB := net.Pipe()

	optsA := opts
	optsA.Initiator = true
	optsB := opts
	optsB.Initiator = false

	type result struct {
		s   Session
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := a.Replicate(connA, optsA)
		ch <- result{s, err}
	}()

	sessB, err := b.Replicate(connB, optsB)
	require.NoError(t, err)

	ra := <-ch
	require.NoError(t, ra.err)

	t.Cleanup(func() {
		ra.s.Close()
		sessB.Close()
	})
	return ra.s, sessB
}

// TestStoreReplicateEndToEnd 端到端复制场景
//
// 存储 A 持有默认核心与一个命名核心；存储 B 以公钥打开默认
// 核心的副本，命名核心已预置在 B 的本地存储中，通过通告的
// 发现密钥按发现模式命中并附加。
func TestStoreReplicateEndToEnd(t *testing.T) {
	storeA, _ := newMemoryStore(t, "store-a")
	storeB, engineB := newMemoryStore(t, "store-b")

	// A 的默认核心写入一个块
	defA, err := storeA.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, defA)
	_, err = defA.Log().Append([]byte("default block"))
	require.NoError(t, err)

	// A 的命名核心写入两个块
	logsA, err := storeA.Get(CoreOptions{Name: "logs"})
	require.NoError(t, err)
	requireReady(t, logsA)
	_, err = logsA.Log().Append([]byte("one"), []byte("two"))
	require.NoError(t, err)

	// B 以公钥打开 A 默认核心的只读副本
	defB, err := storeB.Get(CoreOptions{Key: defA.Key()})
	require.NoError(t, err)
	requireReady(t, defB)
	assert.False(t, defB.Writable())

	// 命名核心的副本预置在 B 的本地存储中，等待发现模式命中
	logsKP := &types.KeyPair{PublicKey: logsA.Key().Clone()}
	logsRoot := storage.NewResolver("store-b", storage.RootFor(logsA.DiscoveryKey().Hex(), true))(".")
	engineB.Seed(logsRoot, logsKP)

	replicatePair(t, storeA, storeB, ReplicateOptions{})

	// 默认核心的块同步到 B
	require.Eventually(t, func() bool {
		return defB.Log().Length() == 1
	}, 3*time.Second, 10*time.Millisecond)
	block, err := defB.Log().Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("default block"), block)

	// 命名核心经发现模式物化并完成同步
	require.Eventually(t, func() bool {
		h, ok := storeB.List()[logsA.DiscoveryKey().Hex()]
		return ok && h.Log().Length() == 2
	}, 3*time.Second, 10*time.Millisecond)
}

// TestStoreReplicateUnknownAbsent 验证发现未命中的通告不污染注册表
func TestStoreReplicateUnknownAbsent(t *testing.T) {
	storeA, _ := newMemoryStore(t, "store-a")
	storeB, _ := newMemoryStore(t, "store-b")

	// A 持有一个 B 本地不存在的核心
	coreA, err := storeA.Get(CoreOptions{Name: "only-on-a"})
	require.NoError(t, err)
	requireReady(t, coreA)

	replicatePair(t, storeA, storeB, ReplicateOptions{})

	// B 收到通告后按发现模式查找，未命中的句柄不得留在注册表
	time.Sleep(200 * time.Millisecond)
	_, ok := storeB.List()[coreA.DiscoveryKey().Hex()]
	assert.False(t, ok)
}

// TestStoreEncryptedReplication 验证共享默认身份的两个存储可以加密复制
func TestStoreEncryptedReplication(t *testing.T) {
	storeA, _ := newMemoryStore(t, "store-a")
	storeB, _ := newMemoryStore(t, "store-b")

	defA, err := storeA.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, defA)
	_, err = defA.Log().Append([]byte("payload"))
	require.NoError(t, err)

	// B 以 A 的公钥登记同一默认身份
	defB, err := storeB.Default(CoreOptions{Key: defA.Key()})
	require.NoError(t, err)
	requireReady(t, defB)

	replicatePair(t, storeA, storeB, ReplicateOptions{Encrypt: true})

	require.Eventually(t, func() bool {
		return defB.Log().Length() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

// TestStoreLateCoreAttaches 验证会话打开后就绪的核心被注入会话
func TestStoreLateCoreAttaches(t *testing.T) {
	storeA, _ := newMemoryStore(t, "store-a")
	storeB, _ := newMemoryStore(t, "store-b")

	replicatePair(t, storeA, storeB, ReplicateOptions{})

	// 会话已打开，此时才创建核心
	late, err := storeA.Get(CoreOptions{Name: "late"})
	require.NoError(t, err)
	requireReady(t, late)
	_, err = late.Log().Append([]byte("late block"))
	require.NoError(t, err)

	// B 收到通告但本地不存在，不物化；A 侧会话确实附加了核心，
	// 这里通过 B 预先持有副本来观察
	coreB, err := storeB.Get(CoreOptions{Key: late.Key()})
	require.NoError(t, err)
	requireReady(t, coreB)

	require.Eventually(t, func() bool {
		return coreB.Log().Length() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

// TestStoreCloseAndReuse 验证关闭清空注册表与会话集且存储可复用
func TestStoreCloseAndReuse(t *testing.T) {
	storeA, _ := newMemoryStore(t, "store-a")
	storeB, _ := newMemoryStore(t, "store-b")

	def, err := storeA.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, def)

	sessA, _ := replicatePair(t, storeA, storeB, ReplicateOptions{})

	require.NoError(t, storeA.Close(context.Background()))
	assert.Empty(t, storeA.List())
	assert.False(t, storeA.IsDefaultSet())

	// 会话的底层流收到销毁信号
	select {
	case <-sessA.Stream().Closed():
	case <-time.After(3 * time.Second):
		t.Fatal("等待流关闭超时")
	}

	// 关闭后继续使用
	again, err := storeA.Default(CoreOptions{})
	require.NoError(t, err)
	requireReady(t, again)
	assert.True(t, storeA.IsDefaultSet())
}
