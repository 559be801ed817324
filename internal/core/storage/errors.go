package storage

import "errors"

var (
	// ErrEngineClosed 引擎已关闭
	ErrEngineClosed = errors.New("storage engine closed")

	// ErrBlockOutOfRange 请求的块序号超出日志长度
	ErrBlockOutOfRange = errors.New("block out of range")

	// ErrMissingResolver 打开日志时未提供路径解析器
	ErrMissingResolver = errors.New("log config missing storage resolver")
)
