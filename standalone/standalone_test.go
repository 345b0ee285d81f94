package standalone

import (
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iverson3/xvalkey/config"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/parser"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// startFakeNode 启动一个只支持少量命令的内存节点
func startFakeNode(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveFakeConn(conn)
		}
	}()
	return listener.Addr().String()
}

func serveFakeConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	data := make(map[string]string)
	ch := parser.ParseStream(conn)
	for payload := range ch {
		if payload.Err != nil {
			return
		}
		cmd, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			_, _ = conn.Write(protocol.MakeErrReply("ERR bad request").ToBytes())
			continue
		}
		args := cmd.Args
		var reply []byte
		switch strings.ToUpper(string(args[0])) {
		case "PING":
			reply = (&protocol.PongReply{}).ToBytes()
		case "SET":
			data[string(args[1])] = string(args[2])
			reply = protocol.MakeOkReply().ToBytes()
		case "GET":
			if v, exists := data[string(args[1])]; exists {
				reply = protocol.MakeBulkReply([]byte(v)).ToBytes()
			} else {
				reply = protocol.MakeNullBulkReply().ToBytes()
			}
		case "INCR":
			n, _ := strconv.ParseInt(data[string(args[1])], 10, 64)
			n++
			data[string(args[1])] = strconv.FormatInt(n, 10)
			reply = protocol.MakeIntReply(n).ToBytes()
		default:
			reply = protocol.MakeErrReply("ERR unknown command '" + string(args[0]) + "'").ToBytes()
		}
		_, _ = conn.Write(reply)
	}
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	addr := startFakeNode(t)
	node, err := New(&config.Config{Addrs: []string{addr}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return node
}

func TestNodeExec(t *testing.T) {
	node := newTestNode(t)

	reply, err := node.Exec(utils.ToCmdLine("SET", "k", "v"))
	require.NoError(t, err)
	assert.True(t, protocol.IsOKReply(reply))

	reply, err = node.Exec(utils.ToCmdLine("GET", "k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), reply.(*protocol.BulkReply).Arg)
}

func TestNodeExecBatch(t *testing.T) {
	node := newTestNode(t)

	replies, err := node.ExecBatch([]CmdLine{
		utils.ToCmdLine("SET", "n", "1"),
		utils.ToCmdLine("INCR", "n"),
		utils.ToCmdLine("GET", "n"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.True(t, protocol.IsOKReply(replies[0]))
	assert.Equal(t, int64(2), replies[1].(*protocol.IntReply).Code)
	assert.Equal(t, []byte("2"), replies[2].(*protocol.BulkReply).Arg)
}

func TestNodeExecOn(t *testing.T) {
	node := newTestNode(t)

	_, err := node.ExecOn("10.0.0.1:1234", utils.ToCmdLine("PING"))
	assert.ErrorIs(t, err, store.ErrUnknownNode)

	addr, err := node.NodeFor("anything")
	require.NoError(t, err)
	reply, err := node.ExecOn(addr, utils.ToCmdLine("PING"))
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", string(reply.ToBytes()))
}

func TestNodeNodeForIgnoresSlots(t *testing.T) {
	node := newTestNode(t)

	// 单节点部署下跨slot的键组合也合法
	addr, err := node.NodeFor("foo", "bar")
	require.NoError(t, err)
	nodes, err := node.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{addr}, nodes)
}

func TestNodeTxConn(t *testing.T) {
	node := newTestNode(t)

	tx, err := node.BorrowTxConn([]string{"k"})
	require.NoError(t, err)
	assert.Equal(t, node.addr, tx.Node())

	reply := tx.Send(utils.ToCmdLine("SET", "k", "v"))
	assert.True(t, protocol.IsOKReply(reply))

	replies, err := tx.SendBatch([]CmdLine{
		utils.ToCmdLine("GET", "k"),
		utils.ToCmdLine("PING"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, []byte("v"), replies[0].(*protocol.BulkReply).Arg)

	assert.NoError(t, tx.Release())
}
