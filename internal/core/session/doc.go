// Package session 实现复制会话集
//
// 会话集跟踪活跃的多路复用流，把核心附加到流上，并响应
// 对端的发现密钥通告。附加规则是幂等骨架：注册表方向
// （核心就绪注入所有会话）与会话方向（新会话附加所有核心）
// 共用同一个 attach 操作，以 (core, session) 维度的成员检查
// 防止同一条流上的重复复制。
package session
