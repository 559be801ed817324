package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/storage")

// 元数据与块的键前缀
var (
	metaKeyKey    = []byte("m:key")
	metaKeySecret = []byte("m:secret")
	metaKeyLength = []byte("m:length")
	blockPrefix   = []byte("b:")
)

// 确保实现了接口
var (
	_ interfaces.Engine = (*BadgerEngine)(nil)
	_ interfaces.Log    = (*badgerLog)(nil)
)

// BadgerEngine 基于 BadgerDB 的追加日志引擎
//
// 每个日志占用一个独立的 Badger 目录，由 LogConfig 的
// 路径解析器定位。
type BadgerEngine struct {
	mu     sync.Mutex
	closed bool
}

// NewBadgerEngine 创建 BadgerDB 引擎
func NewBadgerEngine() *BadgerEngine {
	return &BadgerEngine{}
}

// OpenLog 打开（或创建）一个日志
//
// 同步返回句柄；打开过程在后台进行，通过 Log.Ready 等待结果。
func (e *BadgerEngine) OpenLog(cfg interfaces.LogConfig) (interfaces.Log, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if cfg.Resolver == nil {
		return nil, ErrMissingResolver
	}

	l := &badgerLog{
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}
	go l.open()
	return l, nil
}

// Close 关闭引擎
//
// 已打开的日志由其属主（注册表）负责关闭；Close 之后
// 新的 OpenLog 调用失败。
func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// ============================================================================
// badgerLog
// ============================================================================

// badgerLog 单个 Badger 目录承载的追加日志
type badgerLog struct {
	cfg interfaces.LogConfig

	// readyErr 在 readyCh 关闭前写入，之后只读
	readyCh  chan struct{}
	readyErr error

	mu        sync.Mutex
	db        *badger.DB
	key       types.Key
	secret    types.Key
	discovery types.Key
	length    uint64
	closed    bool
}

// open 后台打开流程：定位目录、打开数据库、解析密钥元数据
func (l *badgerLog) open() {
	dir := l.cfg.Resolver("badger")

	// 发现模式查找：目录不存在即未命中，不创建任何内容
	if !l.cfg.CreateIfMissing {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.finish(interfaces.ErrLogNotFound)
			return
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.finish(fmt.Errorf("create log dir: %w", err))
		return
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		l.finish(fmt.Errorf("open badger: %w", err))
		return
	}

	key, secret, length, err := l.loadMeta(db)
	if err != nil {
		_ = db.Close()
		l.finish(err)
		return
	}

	l.mu.Lock()
	l.db = db
	l.key = key
	l.secret = secret
	l.discovery = crypto.DiscoveryKey(key)
	l.length = length
	l.mu.Unlock()

	logger.Debug("日志已就绪", "dir", dir, "length", length,
		"discoveryKey", log.TruncateID(l.discovery.Hex(), 8))
	l.finish(nil)
}

// loadMeta 加载并调和密钥元数据
//
// 已存储的密钥优先；请求携带的密钥在首次打开时落盘。
// 发现模式打开一个没有密钥元数据的目录视为未命中。
func (l *badgerLog) loadMeta(db *badger.DB) (key, secret types.Key, length uint64, err error) {
	err = db.View(func(txn *badger.Txn) error {
		if item, e := txn.Get(metaKeyKey); e == nil {
			if e = item.Value(func(v []byte) error {
				key = types.Key(v).Clone()
				return nil
			}); e != nil {
				return e
			}
		}
		if item, e := txn.Get(metaKeySecret); e == nil {
			if e = item.Value(func(v []byte) error {
				secret = types.Key(v).Clone()
				return nil
			}); e != nil {
				return e
			}
		}
		if item, e := txn.Get(metaKeyLength); e == nil {
			if e = item.Value(func(v []byte) error {
				length = binary.BigEndian.Uint64(v)
				return nil
			}); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load log meta: %w", err)
	}

	switch {
	case key.IsZero() && !l.cfg.CreateIfMissing:
		// 发现模式打开了一个没有密钥元数据的目录
		return nil, nil, 0, interfaces.ErrLogNotFound

	case key.IsZero():
		// 首次打开：持久化请求携带的密钥；名称/默认寻址
		// 不携带密钥，身份在此生成并随存储保留
		key = l.cfg.Key.Clone()
		secret = l.cfg.SecretKey.Clone()
		if key.IsZero() {
			kp, e := crypto.GenerateKeyPair(nil)
			if e != nil {
				return nil, nil, 0, fmt.Errorf("generate keypair: %w", e)
			}
			key, secret = kp.PublicKey, kp.SecretKey
		}
		err = db.Update(func(txn *badger.Txn) error {
			if e := txn.Set(metaKeyKey, key); e != nil {
				return e
			}
			if !secret.IsZero() {
				return txn.Set(metaKeySecret, secret)
			}
			return nil
		})
		if err != nil {
			return nil, nil, 0, fmt.Errorf("store log meta: %w", err)
		}

	case !l.cfg.Key.IsZero() && !key.Equal(l.cfg.Key):
		return nil, nil, 0, fmt.Errorf("stored key does not match requested key")
	}

	// 请求新携带的私钥补写入元数据
	if secret.IsZero() && !l.cfg.SecretKey.IsZero() {
		secret = l.cfg.SecretKey.Clone()
		err = db.Update(func(txn *badger.Txn) error {
			return txn.Set(metaKeySecret, secret)
		})
		if err != nil {
			return nil, nil, 0, fmt.Errorf("store log secret: %w", err)
		}
	}

	return key, secret, length, nil
}

// finish 一次性交付就绪结果
func (l *badgerLog) finish(err error) {
	l.readyErr = err
	close(l.readyCh)
}

// Ready 阻塞等待日志就绪
func (l *badgerLog) Ready(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.readyCh:
		return l.readyErr
	}
}

// Key 公钥
func (l *badgerLog) Key() types.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key
}

// DiscoveryKey 发现密钥
func (l *badgerLog) DiscoveryKey() types.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discovery
}

// Writable 本方是否持有私钥
func (l *badgerLog) Writable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.secret.IsZero()
}

// Length 当前日志长度
func (l *badgerLog) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

// Append 追加数据块
//
// 追加是存储层操作，复制流接收到的远端块也经此写入；
// Writable 仅表示本方可否作为作者追加（内容校验不在本层）。
func (l *badgerLog) Append(data ...[]byte) (uint64, error) {
	if err := l.Ready(context.Background()); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, interfaces.ErrLogClosed
	}

	start := l.length
	err := l.db.Update(func(txn *badger.Txn) error {
		for i, block := range data {
			if e := txn.Set(blockKey(start+uint64(i)), block); e != nil {
				return e
			}
		}
		lenBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(lenBuf, start+uint64(len(data)))
		return txn.Set(metaKeyLength, lenBuf)
	})
	if err != nil {
		return 0, fmt.Errorf("append blocks: %w", err)
	}

	l.length = start + uint64(len(data))
	return l.length, nil
}

// Get 读取指定序号的数据块
func (l *badgerLog) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := l.Ready(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, interfaces.ErrLogClosed
	}
	if seq >= l.length {
		return nil, fmt.Errorf("%w: seq %d, length %d", ErrBlockOutOfRange, seq, l.length)
	}

	var block []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(blockKey(seq))
		if e != nil {
			return e
		}
		return item.Value(func(v []byte) error {
			block = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", seq, err)
	}
	return block, nil
}

// Close 关闭日志并等待落盘
//
// 打开仍在进行时等待其先收尾（无在途取消；关闭中的 store
// 必须等待打开结算，不泄漏观察者）。
func (l *badgerLog) Close(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.readyCh:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.db == nil {
		return nil
	}
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// blockKey 块序号对应的存储键
func blockKey(seq uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], seq)
	return key
}
