// Package topicswarm 按主题发现并维护对等连接
//
// Swarm 围绕 32 字节的主题密钥工作：加入主题后，后台发现任务通告本地地址并查找
// 同一主题的其他节点，发现的节点自动连接。Swarm 的核心是生命周期：
// 不论监听器、待建立与已建立的连接、发现任务和连通性探测处于哪个阶段，
// Destroy 都能确定地、恰好一次地把它们全部释放。
//
// # 快速开始
//
//	s, err := topicswarm.New(topicswarm.WithPort(0))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	addr, err := s.Listen(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Println("listening on", addr)
//
//	key := sha256.Sum256([]byte("my-topic"))
//	if err := s.Join(key[:]); err != nil {
//	    log.Fatal(err)
//	}
//
// # 生命周期
//
//	┌────────┐  Destroy()  ┌────────────┐  全部资源释放  ┌───────────┐
//	│ Active │ ──────────▶ │ Destroying │ ────────────▶ │ Destroyed │
//	└────────┘             └────────────┘               └───────────┘
//
// 进入 Destroying 之后，Listen、Address、Join、Leave、Connect、Connectivity
// 均返回 ErrDestroyed，且不会调用传入的回调。进行中的拨号与探测以
// *CancelledError 回调（errors.Is(err, ErrDestroyed) 成立）。
//
// 到达 Destroyed 时 Done() 关闭，发出有状态的 EvtSwarmClosed 事件，
// 并调用全部 OnClose 观察者；之后注册的观察者立即被调用。
//
// # 文件组织
//
//	topicswarm/
//	├── topicswarm.go          # 版本信息、类型别名
//	├── options.go             # WithXxx 配置选项
//	├── errors.go              # 错误定义
//	├── fx.go                  # 组件装配
//	├── swarm.go               # Swarm 结构、New()、基本信息
//	├── swarm_listen.go        # Listen、Address、入站连接
//	├── swarm_connect.go       # Connect、Dial、发现节点的连接
//	├── swarm_topics.go        # Join、Leave、发现结果
//	├── swarm_connectivity.go  # Connectivity、CheckConnectivity
//	├── swarm_lifecycle.go     # Destroy、Close、DestroyAndWait
//	├── swarm_observe.go       # 事件订阅、关闭观察者
//	└── live.go                # 进程内存活 Swarm
//
// # 组件
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  Swarm           生命周期、状态检查、拨号并发与速率限制         │
//	├─────────────────────────────────────────────────────────────┤
//	│  handle          根作用域，追踪全部后台任务                     │
//	│  registry        连接登记表（Pending / Established / Closed） │
//	│  topics          主题表与发现任务                              │
//	├─────────────────────────────────────────────────────────────┤
//	│  transport       TCP + yamux、QUIC                            │
//	│  discovery       memory、static、mDNS                         │
//	│  connectivity    TCP / STUN 可达性探测                         │
//	│  peerbook        主题节点簿（badger）                          │
//	└─────────────────────────────────────────────────────────────┘
package topicswarm
