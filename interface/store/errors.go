package store

import "errors"

// 路由和拓扑层面的错误，在发起任何网络调用之前同步返回
var (
	// ErrCrossSlot 多键命令的键分属不同的slot
	ErrCrossSlot = errors.New("CROSSSLOT keys in request don't hash to the same slot")

	// ErrUnknownNode 指定的节点不在当前拓扑中
	ErrUnknownNode = errors.New("unknown cluster node")

	// ErrTopologyUnavailable 拓扑刷新失败且没有可用的缓存快照
	ErrTopologyUnavailable = errors.New("cluster topology unavailable")

	// ErrNoReachableNode 所有已知节点都无法建立连接
	ErrNoReachableNode = errors.New("no reachable cluster node")
)
