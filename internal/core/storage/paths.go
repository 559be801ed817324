package storage

import (
	"path/filepath"

	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// sharded 路径的目录前缀
const coresDir = "cores"

// RootFor 计算索引键对应的存储根
//
// 默认标记和符号名以自身为根，生成可读的存储路径；
// 发现密钥派生的索引按前四个字符两级分片，限制目录扇出。
func RootFor(index string, discovery bool) string {
	if !discovery || len(index) < 4 {
		return index
	}
	return filepath.Join(coresDir, index[0:2], index[2:4], index)
}

// NewResolver 返回基于 base/root 的存储路径解析器
//
// 把日志内部的相对文件名映射到计算出的存储根之下。
func NewResolver(base, root string) interfaces.StorageResolver {
	return func(name string) string {
		return filepath.Join(base, root, name)
	}
}
