package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 驱动的Prometheus指标，调用方按需注册
var (
	topologyRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xvalkey_topology_refresh_total",
		Help: "成功刷新拓扑快照的次数",
	})

	topologyRefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xvalkey_topology_refresh_failures_total",
		Help: "拓扑刷新失败的次数",
	})

	crossSlotRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xvalkey_cross_slot_rejections_total",
		Help: "因键分属不同slot被拒绝的多键命令数",
	})

	relayedCommands = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xvalkey_relayed_commands_total",
		Help: "发往节点的命令总数",
	})

	movedRedirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xvalkey_moved_redirects_total",
		Help: "收到MOVED/ASK重定向的次数",
	})
)

// RegisterMetrics 把驱动指标注册到给定registry，reg为nil时使用默认registry
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		topologyRefreshes,
		topologyRefreshFailures,
		crossSlotRejections,
		relayedCommands,
		movedRedirects,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
