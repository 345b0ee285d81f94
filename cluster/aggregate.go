package cluster

import (
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// keyGroup 一个节点负责的键子集及其在原始命令中的位置
type keyGroup struct {
	keys      []string
	positions []int
}

// execAggregate 执行键可跨slot的聚合命令（MGET/DEL/EXISTS/UNLINK）
// 键按目标节点分组，每个节点收到只含自己键的子命令，部分结果再按
// 原始键序拼回。重复出现的键保留重复：它们落在同一组里，位置各自记录
func (cluster *Cluster) execAggregate(cmd *command, cmdLine CmdLine) (redis.Reply, error) {
	keys := cmd.keys(cmdLine)
	if len(keys) == 0 {
		return protocol.MakeErrReply("ERR wrong number of arguments for '" + cmd.name + "' command"), nil
	}

	topo, err := cluster.provider.Get()
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*keyGroup)
	order := make([]string, 0) // 稳定的分组遍历顺序
	for i, key := range keys {
		node := topo.NodeByKey(key)
		grp, ok := groups[node]
		if !ok {
			grp = &keyGroup{}
			groups[node] = grp
			order = append(order, node)
		}
		grp.keys = append(grp.keys, key)
		grp.positions = append(grp.positions, i)
	}

	// 只涉及一个节点时退化成普通转发
	if len(groups) == 1 {
		return cluster.relay(order[0], cmdLine)
	}

	var mu sync.Mutex
	replies := make(map[string]redis.Reply, len(groups))
	var g errgroup.Group
	for _, node := range order {
		node := node
		grp := groups[node]
		g.Go(func() error {
			sub := make(CmdLine, 0, len(grp.keys)+1)
			sub = append(sub, cmdLine[0])
			for _, key := range grp.keys {
				sub = append(sub, []byte(key))
			}
			reply, err := cluster.relay(node, sub)
			if err != nil {
				return err
			}
			mu.Lock()
			replies[node] = reply
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch cmd.agg {
	case aggSum:
		return mergeAggSum(order, replies)
	default:
		return mergeAggPositional(len(keys), order, groups, replies)
	}
}

// mergeAggSum 各节点返回整数计数，求和（DEL/EXISTS/UNLINK）
func mergeAggSum(order []string, replies map[string]redis.Reply) (redis.Reply, error) {
	var sum int64
	for _, node := range order {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		intReply, ok := reply.(*protocol.IntReply)
		if !ok {
			return nil, errors.New("unexpected reply kind from node " + node)
		}
		sum += intReply.Code
	}
	return protocol.MakeIntReply(sum), nil
}

// mergeAggPositional 各节点按子命令的键序返回数组，按原始位置拼回（MGET）
func mergeAggPositional(total int, order []string, groups map[string]*keyGroup, replies map[string]redis.Reply) (redis.Reply, error) {
	out := make([][]byte, total)
	for _, node := range order {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		grp := groups[node]

		var args [][]byte
		switch r := reply.(type) {
		case *protocol.MultiBulkReply:
			args = r.Args
		case *protocol.EmptyMultiBulkReply:
			args = nil
		default:
			return nil, errors.New("unexpected reply kind from node " + node)
		}
		if len(args) != len(grp.keys) {
			return nil, errors.New("partial result size mismatch from node " + node)
		}
		for i, arg := range args {
			out[grp.positions[i]] = arg
		}
	}
	return protocol.MakeMultiBulkReply(out), nil
}

// broadcastMerge 把各主节点的结果合并成单个结果
type broadcastMerge func(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error)

// execBroadcast 执行整集群命令
func (cluster *Cluster) execBroadcast(cmd *command, cmdLine CmdLine) (redis.Reply, error) {
	replies, err := cluster.broadcast(cmdLine)
	if err != nil {
		return nil, err
	}
	return cmd.merge(cmdLine, replies)
}

func sortedNodes(replies map[string]redis.Reply) []string {
	nodes := make([]string, 0, len(replies))
	for node := range replies {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// mergeSum 整数结果求和（DBSIZE）
func mergeSum(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error) {
	var sum int64
	for _, node := range sortedNodes(replies) {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		intReply, ok := reply.(*protocol.IntReply)
		if !ok {
			return nil, errors.New("unexpected reply kind from node " + node)
		}
		sum += intReply.Code
	}
	return protocol.MakeIntReply(sum), nil
}

// mergeUnion 数组结果取并集（KEYS）
// 各主节点的键空间本来就不相交，去重只是对迁移中的极端情况兜底
func mergeUnion(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error) {
	seen := make(map[string]struct{})
	var out [][]byte
	for _, node := range sortedNodes(replies) {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		var args [][]byte
		switch r := reply.(type) {
		case *protocol.MultiBulkReply:
			args = r.Args
		case *protocol.EmptyMultiBulkReply:
			args = nil
		default:
			return nil, errors.New("unexpected reply kind from node " + node)
		}
		for _, arg := range args {
			if _, ok := seen[string(arg)]; ok {
				continue
			}
			seen[string(arg)] = struct{}{}
			out = append(out, arg)
		}
	}
	if len(out) == 0 {
		return protocol.MakeEmptyMultiBulkReply(), nil
	}
	return protocol.MakeMultiBulkReply(out), nil
}

// mergeAllOK 所有节点都成功才算成功（FLUSHALL/FLUSHDB）
func mergeAllOK(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error) {
	for _, node := range sortedNodes(replies) {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
	}
	return protocol.MakeOkReply(), nil
}

// mergeByNode 按节点地址归并文本结果（INFO）
// 输出为[addr1, payload1, addr2, payload2, ...]的扁平键值对
func mergeByNode(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error) {
	out := make([][]byte, 0, len(replies)*2)
	for _, node := range sortedNodes(replies) {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		var payload []byte
		switch r := reply.(type) {
		case *protocol.BulkReply:
			payload = r.Arg
		case *protocol.StatusReply:
			payload = []byte(r.Status)
		default:
			payload = r.ToBytes()
		}
		out = append(out, []byte(node), payload)
	}
	return protocol.MakeMultiBulkReply(out), nil
}

// mergeConfig 归并CONFIG GET：参数名带上节点地址前缀
// 输出为["addr.param", value, ...]的扁平键值对
func mergeConfig(cmdLine CmdLine, replies map[string]redis.Reply) (redis.Reply, error) {
	out := make([][]byte, 0, len(replies)*2)
	for _, node := range sortedNodes(replies) {
		reply := replies[node]
		if protocol.IsErrorReply(reply) {
			return reply, nil
		}
		var args [][]byte
		switch r := reply.(type) {
		case *protocol.MultiBulkReply:
			args = r.Args
		case *protocol.EmptyMultiBulkReply:
			args = nil
		default:
			return nil, errors.New("unexpected reply kind from node " + node)
		}
		if len(args)%2 != 0 {
			return nil, errors.New("odd CONFIG GET reply from node " + node)
		}
		for i := 0; i < len(args); i += 2 {
			out = append(out, []byte(node+"."+string(args[i])), args[i+1])
		}
	}
	return protocol.MakeMultiBulkReply(out), nil
}
