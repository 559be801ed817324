// Package registry 实现核心注册表
//
// 注册表是核心句柄的唯一属主：按规范索引惰性创建、幂等返回，
// 就绪后在公钥与发现密钥两个身份下双重登记，并把新核心注入
// 所有活跃复制会话。发现模式未命中的句柄进入 Errored 状态，
// 从注册表移除且不向调用方抛出。
package registry
