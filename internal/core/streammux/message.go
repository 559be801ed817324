package streammux

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// 帧类型
const (
	// frameControl 控制流头帧
	frameControl = "control"
	// frameAnnounce 发现密钥通告
	frameAnnounce = "announce"
	// frameSync 同步流头帧（携带请求方已有长度）
	frameSync = "sync"
	// frameBlock 数据块
	frameBlock = "block"
	// frameDone 同步结束
	frameDone = "done"
	// frameMiss 响应方没有该日志
	frameMiss = "miss"
)

// maxFrameSize 单帧上限（4 MiB）
const maxFrameSize = 4 << 20

// frame 流上的控制/同步消息
type frame struct {
	// ID 消息ID
	ID string `json:"id"`

	// Type 帧类型
	Type string `json:"type"`

	// DiscoveryKey 发现密钥（十六进制）
	DiscoveryKey string `json:"discoveryKey,omitempty"`

	// Length 请求方已有的日志长度
	Length uint64 `json:"length,omitempty"`

	// Seq 块序号
	Seq uint64 `json:"seq,omitempty"`

	// Block 块数据
	Block []byte `json:"block,omitempty"`
}

// newFrame 创建带消息ID的帧
func newFrame(typ string) *frame {
	return &frame{
		ID:   uuid.New().String(),
		Type: typ,
	}
}

// writeFrame 写入一帧（4 字节长度前缀 + JSON）
func writeFrame(w io.Writer, f *frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(data)))

	if _, err := w.Write(lengthBytes); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// readFrame 读取一帧
func readFrame(r io.Reader) (*frame, error) {
	lengthBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBytes); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBytes)
	if length > maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}
