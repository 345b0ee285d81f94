package cluster

import (
	"context"
	"errors"
	"sync"

	pool "github.com/jolestar/go-commons-pool/v2"
	"golang.org/x/sync/errgroup"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/client"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// getPool 按需为节点创建连接池
// 集群的节点是通过拓扑发现的，不能像固定配置那样预先建池
func (cluster *Cluster) getPool(peer string) *pool.ObjectPool {
	cluster.peerMu.Lock()
	defer cluster.peerMu.Unlock()
	p, ok := cluster.peerConnection[peer]
	if !ok {
		p = newNodePool(peer, cluster.password, cluster.poolMaxTotal)
		cluster.peerConnection[peer] = p
	}
	return p
}

func (cluster *Cluster) getPeerClient(peer string) (*client.Client, error) {
	raw, err := cluster.getPool(peer).BorrowObject(context.Background())
	if err != nil {
		return nil, err
	}
	conn, ok := raw.(*client.Client)
	if !ok {
		return nil, errors.New("connection pool made wrong type")
	}
	return conn, nil
}

func (cluster *Cluster) returnPeerClient(peer string, peerClient *client.Client) error {
	return cluster.getPool(peer).ReturnObject(context.Background(), peerClient)
}

// defaultRelayImpl 把命令发到指定节点并处理MOVED/ASK重定向
// 重定向说明缓存的拓扑已经过期：让快照失效，并按节点给出的新地址重试一次
var defaultRelayImpl = func(cluster *Cluster, node string, cmdLine CmdLine) (redis.Reply, error) {
	peerClient, err := cluster.getPeerClient(node)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cluster.returnPeerClient(node, peerClient)
	}()

	relayedCommands.Inc()
	reply := peerClient.Send(cmdLine)

	if errReply, ok := reply.(protocol.ErrorReply); ok {
		if redirect, ok := protocol.ParseRedirect(errReply.Error()); ok {
			movedRedirects.Inc()
			cluster.provider.Invalidate()
			return cluster.followRedirect(redirect, cmdLine)
		}
	}
	return reply, nil
}

func (cluster *Cluster) followRedirect(redirect *protocol.Redirect, cmdLine CmdLine) (redis.Reply, error) {
	peerClient, err := cluster.getPeerClient(redirect.Addr)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cluster.returnPeerClient(redirect.Addr, peerClient)
	}()

	if redirect.Ask {
		// ASK重定向只对紧随其后的一条命令有效
		asking := peerClient.Send(utils.ToCmdLine("ASKING"))
		if protocol.IsErrorReply(asking) {
			return asking, nil
		}
	}
	relayedCommands.Inc()
	return peerClient.Send(cmdLine), nil
}

var defaultRelayBatchImpl = func(cluster *Cluster, node string, cmdLines []CmdLine) ([]redis.Reply, error) {
	peerClient, err := cluster.getPeerClient(node)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cluster.returnPeerClient(node, peerClient)
	}()

	replies, err := peerClient.SendBatch(cmdLines)
	if err != nil {
		return nil, err
	}
	relayedCommands.Add(float64(len(cmdLines)))
	return replies, nil
}

func (cluster *Cluster) relay(node string, cmdLine CmdLine) (redis.Reply, error) {
	return cluster.relayImpl(cluster, node, cmdLine)
}

func (cluster *Cluster) relayBatch(node string, cmdLines []CmdLine) ([]redis.Reply, error) {
	return cluster.relayBatchImpl(cluster, node, cmdLines)
}

// broadcast 把命令并发发给所有主节点，返回节点地址到结果的映射
// 每个节点一次独立调用，全部完成后才返回
func (cluster *Cluster) broadcast(cmdLine CmdLine) (map[string]redis.Reply, error) {
	topo, err := cluster.provider.Get()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]redis.Reply)
	var g errgroup.Group
	for _, addr := range topo.Addrs() {
		addr := addr
		g.Go(func() error {
			reply, err := cluster.relay(addr, cmdLine)
			if err != nil {
				return err
			}
			mu.Lock()
			results[addr] = reply
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// txConn 是从节点池借出的独占连接，承载WATCH状态和MULTI/EXEC
type txConn struct {
	cluster *Cluster
	node    string
	conn    *client.Client
}

var _ store.TxConn = (*txConn)(nil)

func (t *txConn) Node() string {
	return t.node
}

func (t *txConn) Send(cmdLine CmdLine) redis.Reply {
	return t.conn.Send(cmdLine)
}

func (t *txConn) SendBatch(cmdLines []CmdLine) ([]redis.Reply, error) {
	return t.conn.SendBatch(cmdLines)
}

func (t *txConn) Release() error {
	return t.cluster.returnPeerClient(t.node, t.conn)
}
