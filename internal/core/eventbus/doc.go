// Package eventbus 实现类型化事件总线
//
// 事件按 Go 类型路由：订阅与发射都以指向事件类型的指针指定类型，
// 发射的是事件值本身。
//
//	sub, _ := bus.Subscribe(new(types.EvtSwarmClosed))
//	em, _ := bus.Emitter(new(types.EvtSwarmClosed), eventbus.Stateful())
//	_ = em.Emit(types.EvtSwarmClosed{SwarmID: id})
//
// 订阅缓冲区满时丢弃事件并计数，发射方从不阻塞。
// 有状态发射器保留最后一个事件，之后的订阅者订阅时立即收到它。
package eventbus

import pkgif "github.com/dep2p/go-topicswarm/pkg/interfaces"

// DefaultBuffer 订阅默认缓冲区大小
const DefaultBuffer = 16

// BufSize 设置订阅缓冲区大小
func BufSize(size int) pkgif.SubscriptionOpt { return pkgif.BufSize(size) }

// Stateful 设置发射器为有状态模式
func Stateful() pkgif.EmitterOpt { return pkgif.Stateful() }
