package corestore

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// Module Fx 模块
//
// 宿主应用通过 fx.Supply(&corestore.Config{...}) 提供配置；
// 存储在应用停止时关闭。
var Module = fx.Module("corestore",
	fx.Provide(ProvideStore),
	fx.Invoke(registerLifecycle),
)

// ModuleInput Fx 输入参数
type ModuleInput struct {
	fx.In

	Config *Config
	Engine interfaces.Engine `optional:"true"`
}

// ProvideStore 提供核心存储
func ProvideStore(input ModuleInput) (*Store, error) {
	opts := input.Config.buildOptions()
	if input.Engine != nil {
		opts = append(opts, WithEngine(input.Engine))
	}
	return Open(input.Config.Base, opts...)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, store *Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close(ctx)
		},
	})
}
