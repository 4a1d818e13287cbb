package peerbook

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-topicswarm/config"
)

// Params fx 输入
type Params struct {
	fx.In

	Config *config.Config
	Clock  clock.Clock `optional:"true"`
}

// Result fx 输出；节点簿未启用时 Book 为 nil
type Result struct {
	fx.Out

	Book *Book
}

// Module 节点簿 fx 模块；应用停止时关闭存储
func Module() fx.Option {
	return fx.Module("peerbook",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 提供节点簿
func Provide(p Params) (Result, error) {
	cfg := p.Config.PeerBook
	if !cfg.Enable {
		return Result{}, nil
	}
	book, err := Open(cfg, p.Clock)
	if err != nil {
		return Result{}, err
	}
	return Result{Book: book}, nil
}

func registerLifecycle(lc fx.Lifecycle, book *Book) {
	if book == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Debug("正在关闭节点簿")
			return book.Close()
		},
	})
}
