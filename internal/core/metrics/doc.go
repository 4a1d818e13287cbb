// Package metrics 把 Swarm 统计导出为 Prometheus 指标
//
// Collector 在每次抓取时读取一次统计快照，不在热路径上维护额外计数：
//
//	reg := prometheus.NewRegistry()
//	s, _ := topicswarm.New(topicswarm.WithMetrics(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// 所有指标带 swarm_id 常量标签，同一注册表可以容纳多个 Swarm。
// Swarm 到达 Destroyed 时从注册表注销自己的 Collector。
//
// # 指标
//
//	topicswarm_state                     生命周期状态（0 Active, 1 Destroying, 2 Destroyed）
//	topicswarm_topics                    已加入主题数
//	topicswarm_connections{phase}        当前连接数（pending / established）
//	topicswarm_dials_total               发起的拨号数
//	topicswarm_dial_failures_total       失败的拨号数
//	topicswarm_inbound_accepted_total    接受的入站连接数
//	topicswarm_inbound_refused_total     因连接数上限拒绝的入站连接数
//	topicswarm_peers_discovered_total    发现的节点数（去重后）
package metrics
