package streammux

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/flynn/noise"
)

// Noise-NNpsk0 握手流程：
//
//	-> psk, e
//	<- e, ee
//
// 双方不交换静态身份；认证完全来自预共享的能力密钥，
// 只有知道锚点日志公钥的对端才能派生出相同的 PSK。

// maxNoisePlaintext 单条 Noise 消息的明文上限
//
// Noise 消息总长不超过 65535 字节，留出 AEAD 标签空间。
const maxNoisePlaintext = 65519

// secureSession 执行握手并返回加密连接
func secureSession(conn io.ReadWriteCloser, initiator bool, psk []byte) (io.ReadWriteCloser, error) {
	cs := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:           cs,
		Pattern:               noise.HandshakeNN,
		Initiator:             initiator,
		PresharedKey:          psk,
		PresharedKeyPlacement: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	var sendCS, recvCS *noise.CipherState
	if initiator {
		// 轮次 1: 发送 psk, e
		msg1, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("write message 1: %w", err)
		}
		if err := writeSecureFrame(conn, msg1); err != nil {
			return nil, fmt.Errorf("send message 1: %w", err)
		}

		// 轮次 2: 接收 e, ee（最后一轮，返回 CipherStates）
		msg2, err := readSecureFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("receive message 2: %w", err)
		}
		_, cs1, cs2, err := hs.ReadMessage(nil, msg2)
		if err != nil {
			return nil, fmt.Errorf("read message 2: %w", err)
		}
		// cs1 = 发起方 → 响应方
		sendCS, recvCS = cs1, cs2
	} else {
		// 轮次 1: 接收 psk, e
		msg1, err := readSecureFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("receive message 1: %w", err)
		}
		if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
			return nil, fmt.Errorf("read message 1: %w", err)
		}

		// 轮次 2: 发送 e, ee（最后一轮，返回 CipherStates）
		msg2, cs1, cs2, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("write message 2: %w", err)
		}
		if err := writeSecureFrame(conn, msg2); err != nil {
			return nil, fmt.Errorf("send message 2: %w", err)
		}
		sendCS, recvCS = cs2, cs1
	}

	return &secureConn{
		inner:  conn,
		sendCS: sendCS,
		recvCS: recvCS,
	}, nil
}

// ============================================================================
// secureConn
// ============================================================================

// secureConn Noise 加密连接
type secureConn struct {
	inner io.ReadWriteCloser

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	readMu  sync.Mutex
	writeMu sync.Mutex

	// readBuf 上一条消息未被读走的剩余明文
	readBuf []byte
}

// Read 从连接读取数据（解密）
func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.readBuf) > 0 {
		n := copy(p, c.readBuf)
		c.readBuf = c.readBuf[n:]
		return n, nil
	}

	encrypted, err := readSecureFrame(c.inner)
	if err != nil {
		return 0, err
	}

	plaintext, err := c.recvCS.Decrypt(nil, nil, encrypted)
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}

	n := copy(p, plaintext)
	if n < len(plaintext) {
		c.readBuf = append(c.readBuf[:0], plaintext[n:]...)
	}
	return n, nil
}

// Write 向连接写入数据（加密）
//
// 超过单条 Noise 消息上限的数据分块发送。
func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxNoisePlaintext {
			chunk = chunk[:maxNoisePlaintext]
		}

		ciphertext, err := c.sendCS.Encrypt(nil, nil, chunk)
		if err != nil {
			return total, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeSecureFrame(c.inner, ciphertext); err != nil {
			return total, err
		}

		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// Close 关闭底层连接
func (c *secureConn) Close() error {
	return c.inner.Close()
}

// writeSecureFrame 写入帧（2 字节长度 + 数据）
func writeSecureFrame(w io.Writer, data []byte) error {
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(data)))

	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// readSecureFrame 读取帧（2 字节长度 + 数据）
func readSecureFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(lenBuf)
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
