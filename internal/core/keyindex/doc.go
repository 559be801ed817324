// Package keyindex 实现核心打开请求的规范化索引
//
// 三种寻址方式（显式密钥对、符号名、发现密钥查找）在这里
// 收敛为唯一的规范索引键，下游不再对请求形态做分支。
package keyindex
