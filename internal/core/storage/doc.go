// Package storage 实现存储根派生与默认的追加日志引擎
//
// 路径派生规则：默认标记与符号名映射为同名目录；发现密钥派生的
// 索引映射为两级分片路径（cores/ab/cd/abcd...），限制目录扇出。
//
// 默认引擎基于 BadgerDB，每个日志一个独立目录；另提供内存引擎
// 供测试使用，两者共享相同的就绪/未命中语义。
package storage
