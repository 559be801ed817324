package streammux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/streammux")

// announceBuffer 通告通道的缓冲大小
const announceBuffer = 16

// Config 复制流配置
type Config struct {
	// Initiator 是否为发起方
	Initiator bool

	// Encrypt 是否启用 Noise 加密
	Encrypt bool

	// KeepAlive 是否启用底层 yamux 保活
	KeepAlive bool

	// Anchor 能力锚点日志（加密模式必需）
	Anchor interfaces.Log
}

// Stream 基于 yamux 的复制会话流
type Stream struct {
	sess *yamux.Session

	// ctrl 本端出站控制流
	ctrl   *yamux.Stream
	ctrlMu sync.Mutex

	mu    sync.Mutex
	local map[string]interfaces.Log

	// pullMu 串行化追赶写入：同一日志可能有多次追赶在途
	// （Replicate 发起一次，对端通告再触发一次），追加必须
	// 以序号为准判重
	pullMu sync.Mutex

	announceCh     chan types.Key
	announceMu     sync.Mutex
	announceClosed bool

	finishedCh chan struct{}
	finishOnce sync.Once

	endedCh   chan struct{}
	endedOnce sync.Once

	destroyed atomic.Bool
}

var _ interfaces.Stream = (*Stream)(nil)

// New 在底层连接上建立复制流
//
// 加密模式先用能力密钥完成 Noise 握手，再在其上建立
// yamux 会话；握手前等待锚点日志就绪以取得其公钥。
func New(conn io.ReadWriteCloser, cfg Config) (*Stream, error) {
	if cfg.Encrypt {
		if cfg.Anchor == nil {
			return nil, ErrEncryptWithoutAnchor
		}
		if err := cfg.Anchor.Ready(context.Background()); err != nil {
			return nil, fmt.Errorf("wait for anchor: %w", err)
		}

		psk := crypto.CapabilityKey(cfg.Anchor.Key())
		secured, err := secureSession(conn, cfg.Initiator, psk)
		if err != nil {
			return nil, fmt.Errorf("secure session: %w", err)
		}
		conn = secured
	}

	yamuxCfg := yamux.DefaultConfig()
	yamuxCfg.EnableKeepAlive = cfg.KeepAlive
	yamuxCfg.LogOutput = io.Discard

	var sess *yamux.Session
	var err error
	if cfg.Initiator {
		sess, err = yamux.Client(conn, yamuxCfg)
	} else {
		sess, err = yamux.Server(conn, yamuxCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s := &Stream{
		sess:       sess,
		local:      make(map[string]interfaces.Log),
		announceCh: make(chan types.Key, announceBuffer),
		finishedCh: make(chan struct{}),
		endedCh:    make(chan struct{}),
	}

	// 双方各自打开一条出站控制流，对端的控制流在 acceptLoop 中出现
	ctrl, err := sess.OpenStream()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("open control stream: %w", err)
	}
	if err := writeFrame(ctrl, newFrame(frameControl)); err != nil {
		sess.Close()
		return nil, fmt.Errorf("send control header: %w", err)
	}
	s.ctrl = ctrl

	go s.acceptLoop()

	return s, nil
}

// Replicate 将日志附加到流上
//
// 向对端通告其发现密钥，并发起一次追赶式块同步。
// 日志须已就绪。
func (s *Stream) Replicate(l interfaces.Log) error {
	if s.destroyed.Load() {
		return ErrStreamDestroyed
	}

	dkHex := l.DiscoveryKey().Hex()

	s.mu.Lock()
	if _, ok := s.local[dkHex]; ok {
		s.mu.Unlock()
		return nil
	}
	s.local[dkHex] = l
	s.mu.Unlock()

	announce := newFrame(frameAnnounce)
	announce.DiscoveryKey = dkHex

	s.ctrlMu.Lock()
	err := writeFrame(s.ctrl, announce)
	s.ctrlMu.Unlock()
	if err != nil {
		return fmt.Errorf("announce log: %w", err)
	}

	go s.pull(dkHex, l)

	return nil
}

// Announcements 返回对端通告的未知发现密钥通道
//
// 本端已附加的日志不出现在通道上（直接触发一次追赶同步）。
// 对端控制流结束或会话终止后通道关闭。
func (s *Stream) Announcements() <-chan types.Key {
	return s.announceCh
}

// Finished 本端完成信号
func (s *Stream) Finished() <-chan struct{} {
	return s.finishedCh
}

// Ended 对端结束信号
func (s *Stream) Ended() <-chan struct{} {
	return s.endedCh
}

// Closed 底层会话关闭信号
func (s *Stream) Closed() <-chan struct{} {
	return s.sess.CloseChan()
}

// Finish 宣告本端复制完成
//
// 关闭出站控制流，对端据此观察到 Ended。
func (s *Stream) Finish() {
	s.finishOnce.Do(func() {
		close(s.finishedCh)
		s.ctrl.Close()
	})
}

// Destroy 销毁流并关闭底层连接
//
// 销毁同时视为本端完成。
func (s *Stream) Destroy() error {
	s.destroyed.Store(true)
	s.finishOnce.Do(func() {
		close(s.finishedCh)
	})
	return s.sess.Close()
}

// ============================================================================
// 入站流处理
// ============================================================================

// acceptLoop 接收对端打开的流并按头帧分发
func (s *Stream) acceptLoop() {
	for {
		stream, err := s.sess.AcceptStream()
		if err != nil {
			s.markEnded()
			s.closeAnnounce()
			return
		}

		go s.handleInbound(stream)
	}
}

// handleInbound 处理一条入站流
func (s *Stream) handleInbound(stream *yamux.Stream) {
	header, err := readFrame(stream)
	if err != nil {
		stream.Close()
		return
	}

	switch header.Type {
	case frameControl:
		s.controlLoop(stream)
	case frameSync:
		s.serveSync(stream, header)
	default:
		logger.Debug("忽略未知头帧",
			"type", header.Type)
		stream.Close()
	}
}

// controlLoop 读取对端控制流上的通告
func (s *Stream) controlLoop(stream *yamux.Stream) {
	defer func() {
		stream.Close()
		s.markEnded()
		s.closeAnnounce()
	}()

	for {
		f, err := readFrame(stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("控制流读取结束",
					"error", err)
			}
			return
		}
		if f.Type != frameAnnounce {
			continue
		}

		dk, err := types.DecodeKey(f.DiscoveryKey)
		if err != nil {
			logger.Warn("通告携带无效发现密钥",
				"discoveryKey", f.DiscoveryKey,
				"error", err)
			continue
		}

		// 本端已附加的日志：对端刚刚附加完成，重新追赶一次。
		// 对端先登记后通告，这次同步不会落空。
		s.mu.Lock()
		l, known := s.local[f.DiscoveryKey]
		s.mu.Unlock()
		if known {
			go s.pull(f.DiscoveryKey, l)
			continue
		}

		s.announceMu.Lock()
		if !s.announceClosed {
			select {
			case s.announceCh <- dk:
			default:
				logger.Debug("通告通道已满，丢弃",
					"discoveryKey", log.TruncateID(f.DiscoveryKey, 12))
			}
		}
		s.announceMu.Unlock()
	}
}

// serveSync 响应对端的追赶式同步请求
//
// 从请求方已有长度开始逐块发送，结束后发 done 帧；
// 本端未附加该日志时回复 miss 帧。
func (s *Stream) serveSync(stream *yamux.Stream, header *frame) {
	defer stream.Close()

	s.mu.Lock()
	l, ok := s.local[header.DiscoveryKey]
	s.mu.Unlock()

	if !ok {
		miss := newFrame(frameMiss)
		miss.DiscoveryKey = header.DiscoveryKey
		if err := writeFrame(stream, miss); err != nil {
			logger.Debug("发送 miss 帧失败",
				"error", err)
		}
		return
	}

	ctx := context.Background()
	length := l.Length()
	for seq := header.Length; seq < length; seq++ {
		block, err := l.Get(ctx, seq)
		if err != nil {
			logger.Warn("读取块失败",
				"discoveryKey", log.TruncateID(header.DiscoveryKey, 12),
				"seq", seq,
				"error", err)
			return
		}

		f := newFrame(frameBlock)
		f.DiscoveryKey = header.DiscoveryKey
		f.Seq = seq
		f.Block = block
		if err := writeFrame(stream, f); err != nil {
			return
		}
	}

	done := newFrame(frameDone)
	done.DiscoveryKey = header.DiscoveryKey
	if err := writeFrame(stream, done); err != nil {
		logger.Debug("发送 done 帧失败",
			"error", err)
	}
}

// pull 向对端发起一次追赶式同步
func (s *Stream) pull(dkHex string, l interfaces.Log) {
	stream, err := s.sess.OpenStream()
	if err != nil {
		logger.Debug("打开同步流失败",
			"discoveryKey", log.TruncateID(dkHex, 12),
			"error", err)
		return
	}
	defer stream.Close()

	req := newFrame(frameSync)
	req.DiscoveryKey = dkHex
	req.Length = l.Length()
	if err := writeFrame(stream, req); err != nil {
		logger.Debug("发送同步请求失败",
			"discoveryKey", log.TruncateID(dkHex, 12),
			"error", err)
		return
	}

	for {
		f, err := readFrame(stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("同步流读取结束",
					"discoveryKey", log.TruncateID(dkHex, 12),
					"error", err)
			}
			return
		}

		switch f.Type {
		case frameBlock:
			// 只追加序号恰为当前长度的块；并发追赶送达的
			// 已持有块直接跳过
			s.pullMu.Lock()
			if f.Seq != l.Length() {
				s.pullMu.Unlock()
				continue
			}
			_, err := l.Append(f.Block)
			s.pullMu.Unlock()
			if err != nil {
				logger.Warn("写入远端块失败",
					"discoveryKey", log.TruncateID(dkHex, 12),
					"seq", f.Seq,
					"error", err)
				return
			}
		case frameMiss, frameDone:
			return
		}
	}
}

// markEnded 标记对端结束
func (s *Stream) markEnded() {
	s.endedOnce.Do(func() {
		close(s.endedCh)
	})
}

// closeAnnounce 关闭通告通道（至多一次）
//
// 控制流结束与会话终止两条路径都会到达这里，保证订阅方
// 的 range 总能退出。
func (s *Stream) closeAnnounce() {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	if s.announceClosed {
		return
	}
	s.announceClosed = true
	close(s.announceCh)
}
