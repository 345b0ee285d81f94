// Package cluster 实现面向分片KV集群的客户端路由
// 它维护slot到节点的拓扑缓存，把命令转发给正确的主节点，
// 对跨slot的聚合命令做scatter/gather，对整集群命令做广播合并
package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pool "github.com/jolestar/go-commons-pool/v2"
	"go.uber.org/zap"

	"github.com/iverson3/xvalkey/config"
	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/hashslot"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

type relayFunc func(cluster *Cluster, node string, cmdLine CmdLine) (redis.Reply, error)
type relayBatchFunc func(cluster *Cluster, node string, cmdLines []CmdLine) ([]redis.Reply, error)

// Cluster 代表一个分片集群的客户端视图，实现store.Store
// 同一进程内的多条逻辑连接可以共享同一个Cluster实例
type Cluster struct {
	provider *Provider

	password     string
	poolMaxTotal int

	peerMu         sync.Mutex
	peerConnection map[string]*pool.ObjectPool

	// 可注入，用于测试时绕开真实网络
	relayImpl      relayFunc
	relayBatchImpl relayBatchFunc

	logger *zap.Logger
}

var _ store.Store = (*Cluster)(nil)

// New 根据配置构建集群客户端，不会立即联络集群，拓扑在首次使用时拉取
func New(cfg *config.Config) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cluster{
		provider:       NewProvider(cfg.Addrs, cfg.TopologyCacheTimeout),
		password:       cfg.Password,
		poolMaxTotal:   cfg.PoolMaxTotal,
		peerConnection: make(map[string]*pool.ObjectPool),
		relayImpl:      defaultRelayImpl,
		relayBatchImpl: defaultRelayBatchImpl,
		logger:         logger.Named("cluster"),
	}, nil
}

// Exec 路由并执行一条命令
// 节点侧的错误以ErrorReply返回，路由与连接层面的失败以error返回
func (cluster *Cluster) Exec(cmdLine CmdLine) (result redis.Reply, err error) {
	defer func() {
		if e := recover(); e != nil {
			cluster.logger.Error("exec panic", zap.Any("error", e))
			result = protocol.MakeErrReply("ERR internal error")
			err = nil
		}
	}()

	if len(cmdLine) == 0 {
		return protocol.MakeErrReply("ERR empty command"), nil
	}
	name := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[name]
	if !ok {
		return protocol.MakeErrReply("ERR unknown command '" + name + "'"), nil
	}

	switch cmd.policy {
	case policyKeyless:
		topo, err := cluster.provider.Get()
		if err != nil {
			return nil, err
		}
		return cluster.relay(topo.AnyAddr(), cmdLine)

	case policySingleSlot:
		keys := cmd.keys(cmdLine)
		if len(keys) == 0 {
			return protocol.MakeErrReply("ERR wrong number of arguments for '" + name + "' command"), nil
		}
		if !hashslot.SameSlot(keys...) {
			crossSlotRejections.Inc()
			return nil, store.ErrCrossSlot
		}
		topo, err := cluster.provider.Get()
		if err != nil {
			return nil, err
		}
		return cluster.relay(topo.NodeByKey(keys[0]), cmdLine)

	case policyAggregate:
		// 键恰好同slot时走快速路径，免去分组开销
		keys := cmd.keys(cmdLine)
		if len(keys) > 0 && hashslot.SameSlot(keys...) {
			topo, err := cluster.provider.Get()
			if err != nil {
				return nil, err
			}
			return cluster.relay(topo.NodeByKey(keys[0]), cmdLine)
		}
		return cluster.execAggregate(cmd, cmdLine)

	case policyBroadcast:
		return cluster.execBroadcast(cmd, cmdLine)
	}
	return protocol.MakeErrReply("ERR unknown command '" + name + "'"), nil
}

// ExecBatch 将一批命令作为流水线提交
// 同节点的命令合并为一次网络往返；结果顺序与输入一致，
// 单条命令的路由失败只影响自己的位置
func (cluster *Cluster) ExecBatch(cmdLines []CmdLine) ([]redis.Reply, error) {
	if len(cmdLines) == 0 {
		return nil, nil
	}
	topo, err := cluster.provider.Get()
	if err != nil {
		return nil, err
	}

	results := make([]redis.Reply, len(cmdLines))
	type nodeBatch struct {
		cmdLines  []CmdLine
		positions []int
	}
	batches := make(map[string]*nodeBatch)

	for i, cmdLine := range cmdLines {
		node, errReply := cluster.routeNode(topo, cmdLine)
		if errReply != nil {
			results[i] = errReply
			continue
		}
		b, ok := batches[node]
		if !ok {
			b = &nodeBatch{}
			batches[node] = b
		}
		b.cmdLines = append(b.cmdLines, cmdLine)
		b.positions = append(b.positions, i)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for node, b := range batches {
		node, b := node, b
		wg.Add(1)
		go func() {
			defer wg.Done()
			replies, err := cluster.relayBatch(node, b.cmdLines)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errReply := protocol.MakeErrReply("ERR node " + node + " unreachable: " + err.Error())
				for _, pos := range b.positions {
					results[pos] = errReply
				}
				return
			}
			for i, pos := range b.positions {
				results[pos] = replies[i]
			}
		}()
	}
	wg.Wait()
	return results, nil
}

// routeNode 为流水线中的一条命令选出目标节点
// 广播命令和跨slot聚合在流水线里没有单一落点，按错误处理
func (cluster *Cluster) routeNode(topo *Topology, cmdLine CmdLine) (string, protocol.ErrorReply) {
	if len(cmdLine) == 0 {
		return "", protocol.MakeErrReply("ERR empty command")
	}
	name := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[name]
	if !ok {
		return "", protocol.MakeErrReply("ERR unknown command '" + name + "'")
	}

	switch cmd.policy {
	case policyKeyless:
		return topo.AnyAddr(), nil
	case policyBroadcast:
		return "", protocol.MakeErrReply("ERR command '" + name + "' is not allowed in a pipeline")
	default:
		keys := cmd.keys(cmdLine)
		if len(keys) == 0 {
			return "", protocol.MakeErrReply("ERR wrong number of arguments for '" + name + "' command")
		}
		if !hashslot.SameSlot(keys...) {
			crossSlotRejections.Inc()
			return "", protocol.MakeErrReply(store.ErrCrossSlot.Error())
		}
		return topo.NodeByKey(keys[0]), nil
	}
}

// ExecOn 跳过键路由，把命令发往指定节点
func (cluster *Cluster) ExecOn(node string, cmdLine CmdLine) (redis.Reply, error) {
	topo, err := cluster.provider.Get()
	if err != nil {
		return nil, err
	}
	if !topo.HasNode(node) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownNode, node)
	}
	return cluster.relay(node, cmdLine)
}

// NodeFor 返回给定键集合的目标节点地址
func (cluster *Cluster) NodeFor(keys ...string) (string, error) {
	topo, err := cluster.provider.Get()
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return topo.AnyAddr(), nil
	}
	if !hashslot.SameSlot(keys...) {
		crossSlotRejections.Inc()
		return "", store.ErrCrossSlot
	}
	return topo.NodeByKey(keys[0]), nil
}

// BorrowTxConn 借出一条独占的单节点连接，承载WATCH和MULTI/EXEC
// 所有键必须落在同一slot，否则事务无处安放
func (cluster *Cluster) BorrowTxConn(keys []string) (store.TxConn, error) {
	node, err := cluster.NodeFor(keys...)
	if err != nil {
		return nil, err
	}
	conn, err := cluster.getPeerClient(node)
	if err != nil {
		return nil, err
	}
	return &txConn{
		cluster: cluster,
		node:    node,
		conn:    conn,
	}, nil
}

// Nodes 返回当前拓扑中的主节点地址
func (cluster *Cluster) Nodes() ([]string, error) {
	topo, err := cluster.provider.Get()
	if err != nil {
		return nil, err
	}
	return topo.Addrs(), nil
}

// Topology 返回当前拓扑快照，供诊断工具使用
func (cluster *Cluster) Topology() (*Topology, error) {
	return cluster.provider.Get()
}

// Close 关闭所有节点连接池
func (cluster *Cluster) Close() error {
	cluster.peerMu.Lock()
	defer cluster.peerMu.Unlock()
	for _, p := range cluster.peerConnection {
		p.Close(context.Background())
	}
	cluster.peerConnection = make(map[string]*pool.ObjectPool)
	return nil
}
