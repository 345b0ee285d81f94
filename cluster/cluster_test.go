package cluster

import (
	"strings"
	"sync"
	"testing"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// fakeBackend 记录转发并按注入的handler应答，替代真实网络
type fakeBackend struct {
	mu      sync.Mutex
	calls   []relayCall
	handler func(node string, cmdLine CmdLine) redis.Reply
}

type relayCall struct {
	node    string
	cmdLine CmdLine
}

func (f *fakeBackend) record(node string, cmdLine CmdLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, relayCall{node: node, cmdLine: cmdLine})
}

func (f *fakeBackend) nodesAsked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	nodes := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		nodes = append(nodes, c.node)
	}
	return nodes
}

func newTestCluster(t *testing.T, backend *fakeBackend) *Cluster {
	t.Helper()
	provider := newTestProvider(time.Minute, func(addr string) (redis.Reply, error) {
		return threeNodeSlotsReply(), nil
	})
	cluster := &Cluster{
		provider:       provider,
		peerConnection: make(map[string]*pool.ObjectPool),
		logger:         logger.Named("cluster"),
	}
	cluster.relayImpl = func(c *Cluster, node string, cmdLine CmdLine) (redis.Reply, error) {
		backend.record(node, cmdLine)
		return backend.handler(node, cmdLine), nil
	}
	cluster.relayBatchImpl = func(c *Cluster, node string, cmdLines []CmdLine) ([]redis.Reply, error) {
		replies := make([]redis.Reply, len(cmdLines))
		for i, cmdLine := range cmdLines {
			backend.record(node, cmdLine)
			replies[i] = backend.handler(node, cmdLine)
		}
		return replies, nil
	}
	return cluster
}

func okHandler(node string, cmdLine CmdLine) redis.Reply {
	return protocol.MakeOkReply()
}

func TestExecRoutesSingleKeyCommand(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)
	topo, err := cluster.Topology()
	require.NoError(t, err)

	for _, key := range []string{"foo", "bar", "user:{1000}:name"} {
		backend.calls = nil
		reply, err := cluster.Exec(utils.ToCmdLine("SET", key, "v"))
		require.NoError(t, err)
		assert.True(t, protocol.IsOKReply(reply))
		require.Len(t, backend.calls, 1)
		assert.Equal(t, topo.NodeByKey(key), backend.calls[0].node)
	}
}

func TestExecKeylessGoesToAnyNode(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeStatusReply("PONG")
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("PING"))
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", string(reply.ToBytes()))
	require.Len(t, backend.calls, 1)
	assert.True(t, strings.HasPrefix(backend.calls[0].node, "127.0.0.1:70"))
}

func TestExecRejectsCrossSlotMultiKey(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)

	// foo和bar不同slot，MSET必须整条拒绝且不发起任何网络调用
	_, err := cluster.Exec(utils.ToCmdLine("MSET", "foo", "1", "bar", "2"))
	assert.ErrorIs(t, err, store.ErrCrossSlot)
	assert.Empty(t, backend.calls)

	// 同一hashtag则放行
	_, err = cluster.Exec(utils.ToCmdLine("MSET", "{u}a", "1", "{u}b", "2"))
	assert.NoError(t, err)
	assert.Len(t, backend.calls, 1)
}

func TestExecUnknownCommand(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("NOSUCHCMD", "k"))
	require.NoError(t, err)
	assert.True(t, protocol.IsErrorReply(reply))
	assert.Empty(t, backend.calls)
}

func TestExecMGetPreservesOrderAndDuplicates(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		args := make([][]byte, 0, len(cmdLine)-1)
		for _, key := range cmdLine[1:] {
			args = append(args, []byte("v:"+string(key)))
		}
		return protocol.MakeMultiBulkReply(args)
	}}
	cluster := newTestCluster(t, backend)

	// foo和bar分属不同节点，且foo出现两次
	reply, err := cluster.Exec(utils.ToCmdLine("MGET", "foo", "bar", "foo"))
	require.NoError(t, err)

	mb, ok := reply.(*protocol.MultiBulkReply)
	require.True(t, ok)
	require.Len(t, mb.Args, 3)
	assert.Equal(t, "v:foo", string(mb.Args[0]))
	assert.Equal(t, "v:bar", string(mb.Args[1]))
	assert.Equal(t, "v:foo", string(mb.Args[2]))

	// 两个节点各收到一条子命令
	assert.Len(t, backend.calls, 2)
}

func TestExecMGetSameSlotFastPath(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeMultiBulkReply([][]byte{[]byte("1"), []byte("2")})
	}}
	cluster := newTestCluster(t, backend)

	_, err := cluster.Exec(utils.ToCmdLine("MGET", "{u}a", "{u}b"))
	require.NoError(t, err)
	// 同slot时不拆分，原样转发一条
	require.Len(t, backend.calls, 1)
	assert.Equal(t, "MGET", string(backend.calls[0].cmdLine[0]))
	assert.Len(t, backend.calls[0].cmdLine, 3)
}

func TestExecDelSumsAcrossNodes(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeIntReply(int64(len(cmdLine) - 1))
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("DEL", "foo", "bar", "foo"))
	require.NoError(t, err)
	intReply, ok := reply.(*protocol.IntReply)
	require.True(t, ok)
	assert.Equal(t, int64(3), intReply.Code)
}

func TestExecDBSizeBroadcastSum(t *testing.T) {
	sizes := map[string]int64{
		"127.0.0.1:7000": 10,
		"127.0.0.1:7001": 20,
		"127.0.0.1:7002": 30,
	}
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeIntReply(sizes[node])
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("DBSIZE"))
	require.NoError(t, err)
	intReply, ok := reply.(*protocol.IntReply)
	require.True(t, ok)
	assert.Equal(t, int64(60), intReply.Code)
	assert.ElementsMatch(t,
		[]string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"},
		backend.nodesAsked())
}

func TestExecKeysBroadcastUnion(t *testing.T) {
	perNode := map[string][][]byte{
		"127.0.0.1:7000": {[]byte("bar")},
		"127.0.0.1:7001": {[]byte("hello")},
		"127.0.0.1:7002": {[]byte("foo")},
	}
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeMultiBulkReply(perNode[node])
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("KEYS", "*"))
	require.NoError(t, err)
	mb, ok := reply.(*protocol.MultiBulkReply)
	require.True(t, ok)
	// 节点按地址序归并
	assert.Equal(t, [][]byte{[]byte("bar"), []byte("hello"), []byte("foo")}, mb.Args)
}

func TestExecFlushAllRequiresAllOK(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		if node == "127.0.0.1:7001" {
			return protocol.MakeErrReply("ERR loading dataset")
		}
		return protocol.MakeOkReply()
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("FLUSHALL"))
	require.NoError(t, err)
	assert.True(t, protocol.IsErrorReply(reply))

	backend.handler = okHandler
	reply, err = cluster.Exec(utils.ToCmdLine("FLUSHALL"))
	require.NoError(t, err)
	assert.True(t, protocol.IsOKReply(reply))
}

func TestExecInfoMergedByNode(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeBulkReply([]byte("role:master@" + node))
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("INFO"))
	require.NoError(t, err)
	mb, ok := reply.(*protocol.MultiBulkReply)
	require.True(t, ok)
	require.Len(t, mb.Args, 6)
	assert.Equal(t, "127.0.0.1:7000", string(mb.Args[0]))
	assert.Equal(t, "role:master@127.0.0.1:7000", string(mb.Args[1]))
	assert.Equal(t, "127.0.0.1:7002", string(mb.Args[4]))
}

func TestExecConfigGetMergedWithNodePrefix(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		return protocol.MakeMultiBulkReply([][]byte{
			[]byte("maxmemory"), []byte("0"),
		})
	}}
	cluster := newTestCluster(t, backend)

	reply, err := cluster.Exec(utils.ToCmdLine("CONFIG", "GET", "maxmemory"))
	require.NoError(t, err)
	mb, ok := reply.(*protocol.MultiBulkReply)
	require.True(t, ok)
	require.Len(t, mb.Args, 6)
	assert.Equal(t, "127.0.0.1:7000.maxmemory", string(mb.Args[0]))
	assert.Equal(t, "0", string(mb.Args[1]))
}

func TestExecBatchGroupsByNodeAndKeepsOrder(t *testing.T) {
	backend := &fakeBackend{handler: func(node string, cmdLine CmdLine) redis.Reply {
		if strings.EqualFold(string(cmdLine[0]), "GET") {
			return protocol.MakeBulkReply([]byte("v:" + string(cmdLine[1])))
		}
		return protocol.MakeOkReply()
	}}
	cluster := newTestCluster(t, backend)

	replies, err := cluster.ExecBatch([]CmdLine{
		utils.ToCmdLine("SET", "foo", "1"),
		utils.ToCmdLine("GET", "bar"),
		utils.ToCmdLine("GET", "foo"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.True(t, protocol.IsOKReply(replies[0]))
	assert.Equal(t, "v:bar", string(replies[1].(*protocol.BulkReply).Arg))
	assert.Equal(t, "v:foo", string(replies[2].(*protocol.BulkReply).Arg))
}

func TestExecBatchRoutingErrorsAreDeferred(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)

	replies, err := cluster.ExecBatch([]CmdLine{
		utils.ToCmdLine("SET", "foo", "1"),
		utils.ToCmdLine("MSET", "foo", "1", "bar", "2"), // 跨slot
		utils.ToCmdLine("DBSIZE"),                       // 广播不允许进流水线
		utils.ToCmdLine("SET", "bar", "2"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 4)
	assert.True(t, protocol.IsOKReply(replies[0]))
	assert.True(t, protocol.IsErrorReply(replies[1]))
	assert.True(t, protocol.IsErrorReply(replies[2]))
	assert.True(t, protocol.IsOKReply(replies[3]))
}

func TestExecOnRejectsUnknownNode(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)

	_, err := cluster.ExecOn("10.9.9.9:9999", utils.ToCmdLine("PING"))
	assert.ErrorIs(t, err, store.ErrUnknownNode)

	reply, err := cluster.ExecOn("127.0.0.1:7001", utils.ToCmdLine("PING"))
	require.NoError(t, err)
	assert.True(t, protocol.IsOKReply(reply))
	assert.Equal(t, []string{"127.0.0.1:7001"}, backend.nodesAsked())
}

func TestNodeFor(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)
	topo, err := cluster.Topology()
	require.NoError(t, err)

	node, err := cluster.NodeFor("foo")
	require.NoError(t, err)
	assert.Equal(t, topo.NodeByKey("foo"), node)

	node, err = cluster.NodeFor("{u}a", "{u}b")
	require.NoError(t, err)
	assert.Equal(t, topo.NodeByKey("{u}a"), node)

	_, err = cluster.NodeFor("foo", "bar")
	assert.ErrorIs(t, err, store.ErrCrossSlot)

	node, err = cluster.NodeFor()
	require.NoError(t, err)
	assert.True(t, topo.HasNode(node))
}

func TestNodesListsPrimaries(t *testing.T) {
	backend := &fakeBackend{handler: okHandler}
	cluster := newTestCluster(t, backend)

	nodes, err := cluster.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}, nodes)
}
