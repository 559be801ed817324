// Package types 定义 corestore 的公共基础类型
//
// 包含密钥类型（Key/KeyPair）及其十六进制编解码。
// 本包不依赖任何其他 corestore 包，可被公共接口和内部实现共同引用。
package types
