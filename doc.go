// Package corestore 管理多个可独立复制的追加日志实例（核心）
//
// 一个存储实例承担三件事：按三种寻址方式（显式密钥、符号名、
// 仅发现密钥）打开并复用核心；维护活跃复制会话的集合；在核心
// 与会话之间做幂等的多对多接线——新核心就绪时注入所有会话，
// 新会话打开时附加所有核心，对端通告未知发现密钥时按发现模式
// 物化本地核心。
//
// 默认使用 Badger 作为日志引擎，可通过 WithEngine 注入自定义
// 实现。复制基于 yamux 多路复用，可选用 Noise-NNpsk0 加密，
// 预共享密钥由默认核心的公钥派生。
package corestore
