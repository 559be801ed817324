// Package streammux 实现基于 yamux 的复制会话流
//
// 一条流对应一个底层双工连接：yamux 承担多路复用，控制流
// 承载发现密钥通告，每个附加的日志通过独立的同步流做一次
// 追赶式块同步。可选的加密模式在 yamux 之下用 Noise-NNpsk0
// 包裹连接，预共享密钥由默认核心的公钥派生（能力密钥），
// 只有知道该公钥的对端才能完成握手。
package streammux
