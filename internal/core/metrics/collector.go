package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Namespace 指标名前缀
const Namespace = "topicswarm"

// Snapshot Swarm 统计快照
type Snapshot struct {
	State       types.SwarmState
	Topics      int
	Pending     int
	Established int
	Dialed      int64
	DialFailed  int64
	Accepted    int64
	Refused     int64
	Discovered  int64
}

// SnapshotFunc 返回当前快照，在抓取 goroutine 中调用
type SnapshotFunc func() Snapshot

// Collector 实现 prometheus.Collector
type Collector struct {
	snapshot SnapshotFunc

	state       *prometheus.Desc
	topics      *prometheus.Desc
	connections *prometheus.Desc
	dials       *prometheus.Desc
	dialFailed  *prometheus.Desc
	accepted    *prometheus.Desc
	refused     *prometheus.Desc
	discovered  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector
func NewCollector(swarmID string, fn SnapshotFunc) *Collector {
	labels := prometheus.Labels{"swarm_id": swarmID}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, variable, labels)
	}
	return &Collector{
		snapshot:    fn,
		state:       desc("state", "Lifecycle state of the swarm (0 active, 1 destroying, 2 destroyed)."),
		topics:      desc("topics", "Number of joined topics."),
		connections: desc("connections", "Number of tracked connections by phase.", "phase"),
		dials:       desc("dials_total", "Outbound dials started."),
		dialFailed:  desc("dial_failures_total", "Outbound dials that failed."),
		accepted:    desc("inbound_accepted_total", "Inbound connections accepted."),
		refused:     desc("inbound_refused_total", "Inbound connections refused at the peer limit."),
		discovered:  desc("peers_discovered_total", "Peers reported by discovery."),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.topics
	ch <- c.connections
	ch <- c.dials
	ch <- c.dialFailed
	ch <- c.accepted
	ch <- c.refused
	ch <- c.discovered
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.state, float64(s.State))
	gauge(c.topics, float64(s.Topics))
	gauge(c.connections, float64(s.Pending), "pending")
	gauge(c.connections, float64(s.Established), "established")
	counter(c.dials, s.Dialed)
	counter(c.dialFailed, s.DialFailed)
	counter(c.accepted, s.Accepted)
	counter(c.refused, s.Refused)
	counter(c.discovered, s.Discovered)
}
