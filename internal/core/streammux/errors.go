package streammux

import "errors"

var (
	// ErrStreamDestroyed 流已销毁
	ErrStreamDestroyed = errors.New("replication stream destroyed")

	// ErrEncryptWithoutAnchor 加密流缺少能力锚点
	ErrEncryptWithoutAnchor = errors.New("encrypted stream requires an anchor log")

	// ErrFrameTooLarge 帧超出长度上限
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)
