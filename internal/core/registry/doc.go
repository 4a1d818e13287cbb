// Package registry 管理 Swarm 的连接表
//
// 每个连接（入站或出站）从登记到移除都由 Registry 持有：
//
//	Pending ──Establish──▶ Established ──Close/远端断开──▶ Closed（移除）
//	   │
//	   └──Fail / Close──▶ Closed（移除，回调收到错误）
//
// 出站连接的回调恰好调用一次：成功时携带连接，失败时携带错误，
// 被取消时携带 *types.CancelledError。
package registry
