package registry

import (
	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// 观察者通道默认缓冲
const watchBuffer = 16

// watcher 创建通知的订阅者
type watcher struct {
	ch chan interfaces.CoreHandle
}

// notify 投递通知；缓冲满时丢弃（慢消费者不阻塞就绪路径）
func (w *watcher) notify(core interfaces.CoreHandle) {
	select {
	case w.ch <- core:
	default:
	}
}

// Watch 订阅核心创建通知
//
// 每个核心首次就绪时投递一次。返回取消函数；取消后通道关闭。
func (r *Registry) Watch() (<-chan interfaces.CoreHandle, func()) {
	w := &watcher{ch: make(chan interfaces.CoreHandle, watchBuffer)}

	r.mu.Lock()
	r.watchers = append(r.watchers, w)
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		for i, cur := range r.watchers {
			if cur == w {
				r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		close(w.ch)
	}
	return w.ch, cancel
}
