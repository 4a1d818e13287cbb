// Package handle 提供可取消资源句柄与结构化并发作用域
//
// Handle 表示一个被追踪的资源（监听器绑定、拨号、探测、发现任务、连接）：
// 取消信号通过 Context 传递，最终结果通过 Settle 只记录一次。
//
// Group 是 Handle 的作用域：
//   - Go 在作用域内启动 goroutine，作用域关闭后拒绝新工作
//   - Close 取消作用域并关闭全部成员
//   - Wait 等待全部 goroutine 退出、全部成员结算
//
// Swarm 的销毁流程即：Close 根作用域，然后 Wait。
package handle
