package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRootFor 测试存储根派生
func TestRootFor(t *testing.T) {
	// 默认标记与符号名以自身为根
	assert.Equal(t, "default", RootFor("default", false))
	assert.Equal(t, "logs", RootFor("logs", false))

	// 发现索引两级分片
	index := "abcdef0123456789"
	assert.Equal(t, filepath.Join("cores", "ab", "cd", index), RootFor(index, true))
}

// TestNewResolver 测试路径解析器
func TestNewResolver(t *testing.T) {
	resolve := NewResolver("/tmp/s", "logs")
	assert.Equal(t, filepath.Join("/tmp/s", "logs", "badger"), resolve("badger"))
}
