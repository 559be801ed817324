// Package interfaces 定义 corestore 的公共接口
//
// 本包只包含接口与边界类型，不包含实现：
//
//   - Engine/Log: 追加日志引擎边界（默认实现见 internal/core/storage）
//   - Stream: 复制会话流引擎边界（默认实现见 internal/core/streammux）
//   - CoreHandle: 注册表对外暴露的核心句柄
//   - CoreInjector/CoreOpener: 注册表与会话集之间的双向接线接口
//
// 内部实现包只依赖本包与 pkg/types，彼此之间不直接依赖，
// 由根包 corestore 负责组装。
package interfaces
