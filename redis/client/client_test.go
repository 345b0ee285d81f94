package client

import (
	"net"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/parser"
	"github.com/iverson3/xvalkey/redis/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeNode 启动一个只支持少量命令的内存节点，用于驱动wire client
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
		case "ECHO":
			reply = protocol.MakeBulkReply(args[1]).ToBytes()
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

func TestClientSend(t *testing.T) {
	addr := startFakeNode(t)
	c, err := MakeClient(addr)
	require.NoError(t, err)
	c.Start()
	defer c.Close()

	reply := c.Send(utils.ToCmdLine("PING"))
	assert.Equal(t, "+PONG\r\n", string(reply.ToBytes()))

	reply = c.Send(utils.ToCmdLine("SET", "k", "v"))
	assert.True(t, protocol.IsOKReply(reply))

	reply = c.Send(utils.ToCmdLine("GET", "k"))
	assert.Equal(t, []byte("v"), reply.(*protocol.BulkReply).Arg)

	reply = c.Send(utils.ToCmdLine("GET", "missing"))
	assert.IsType(t, &protocol.NullBulkReply{}, reply)

	reply = c.Send(utils.ToCmdLine("BOGUS"))
	assert.True(t, protocol.IsErrorReply(reply))
}

func TestClientSendBatch(t *testing.T) {
	addr := startFakeNode(t)
	c, err := MakeClient(addr)
	require.NoError(t, err)
	c.Start()
	defer c.Close()

	replies, err := c.SendBatch([][][]byte{
		utils.ToCmdLine("SET", "n", "1"),
		utils.ToCmdLine("INCR", "n"),
		utils.ToCmdLine("INCR", "n"),
		utils.ToCmdLine("GET", "n"),
		utils.ToCmdLine("BOGUS"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 5)

	// 结果顺序与提交顺序严格一致，单条错误占据自己的位置
	assert.True(t, protocol.IsOKReply(replies[0]))
	assert.Equal(t, int64(2), replies[1].(*protocol.IntReply).Code)
	assert.Equal(t, int64(3), replies[2].(*protocol.IntReply).Code)
	assert.Equal(t, []byte("3"), replies[3].(*protocol.BulkReply).Arg)
	assert.True(t, protocol.IsErrorReply(replies[4]))
}

func TestClientSendBatchEmpty(t *testing.T) {
	addr := startFakeNode(t)
	c, err := MakeClient(addr)
	require.NoError(t, err)
	c.Start()
	defer c.Close()

	replies, err := c.SendBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestClientClosed(t *testing.T) {
	addr := startFakeNode(t)
	c, err := MakeClient(addr)
	require.NoError(t, err)
	c.Start()
	c.Close()

	reply := c.Send(utils.ToCmdLine("PING"))
	assert.True(t, protocol.IsErrorReply(reply))

	_, err = c.SendBatch([][][]byte{utils.ToCmdLine("PING")})
	assert.Error(t, err)
}

func TestClientCloseStopsGoroutines(t *testing.T) {
	addr := startFakeNode(t)
	before := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		c, err := MakeClient(addr)
		require.NoError(t, err)
		c.Start()
		c.Close()
	}

	// 读写和心跳协程都随Close退出，协程数回落到启动前的水平
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 3*time.Second, 50*time.Millisecond)
}
