package parser

import (
	"bytes"
	"io"
	"testing"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/redis/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOneSingleLine(t *testing.T) {
	reply, err := ParseOne([]byte("+OK\r\n"))
	require.NoError(t, err)
	assert.True(t, protocol.IsOKReply(reply))

	reply, err = ParseOne([]byte("-ERR unknown command\r\n"))
	require.NoError(t, err)
	require.True(t, protocol.IsErrorReply(reply))
	assert.Equal(t, "ERR unknown command", reply.(protocol.ErrorReply).Error())

	reply, err = ParseOne([]byte(":1024\r\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), reply.(*protocol.IntReply).Code)
}

func TestParseOneBulk(t *testing.T) {
	reply, err := ParseOne([]byte("$5\r\nhello\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), reply.(*protocol.BulkReply).Arg)

	// 正文可以包含\r\n，长度说了算
	reply, err = ParseOne([]byte("$6\r\na\r\nb\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\r\nb\r\n"), reply.(*protocol.BulkReply).Arg)

	reply, err = ParseOne([]byte("$-1\r\n"))
	require.NoError(t, err)
	assert.IsType(t, &protocol.NullBulkReply{}, reply)

	reply, err = ParseOne([]byte("$0\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte(""), reply.(*protocol.BulkReply).Arg)
}

func TestParseOneArray(t *testing.T) {
	reply, err := ParseOne([]byte("*3\r\n$1\r\na\r\n$-1\r\n$1\r\nc\r\n"))
	require.NoError(t, err)
	multi := reply.(*protocol.MultiBulkReply)
	require.Len(t, multi.Args, 3)
	assert.Equal(t, []byte("a"), multi.Args[0])
	assert.Nil(t, multi.Args[1])
	assert.Equal(t, []byte("c"), multi.Args[2])

	reply, err = ParseOne([]byte("*0\r\n"))
	require.NoError(t, err)
	assert.IsType(t, &protocol.EmptyMultiBulkReply{}, reply)

	reply, err = ParseOne([]byte("*-1\r\n"))
	require.NoError(t, err)
	assert.IsType(t, &protocol.NullMultiBulkReply{}, reply)
}

func TestParseOneNestedArray(t *testing.T) {
	// CLUSTER SLOTS风格的嵌套结构
	payload := "*1\r\n" +
		"*4\r\n" +
		":0\r\n" +
		":5460\r\n" +
		"*2\r\n$9\r\n127.0.0.1\r\n:7000\r\n" +
		"*2\r\n$9\r\n127.0.0.1\r\n:7003\r\n"
	reply, err := ParseOne([]byte(payload))
	require.NoError(t, err)

	outer := reply.(*protocol.MultiRawReply)
	require.Len(t, outer.Replies, 1)
	entry := outer.Replies[0].(*protocol.MultiRawReply)
	require.Len(t, entry.Replies, 4)
	assert.Equal(t, int64(0), entry.Replies[0].(*protocol.IntReply).Code)
	assert.Equal(t, int64(5460), entry.Replies[1].(*protocol.IntReply).Code)

	primary := entry.Replies[2].(*protocol.MultiRawReply)
	assert.Equal(t, []byte("127.0.0.1"), primary.Replies[0].(*protocol.BulkReply).Arg)
	assert.Equal(t, int64(7000), primary.Replies[1].(*protocol.IntReply).Code)
}

func TestParseStreamMultiple(t *testing.T) {
	input := "+PONG\r\n:2\r\n$3\r\nfoo\r\n"
	ch := ParseStream(io.NopCloser(bytes.NewBufferString(input)))

	var replies []redis.Reply
	for payload := range ch {
		if payload.Err != nil {
			// 流结束
			break
		}
		replies = append(replies, payload.Data)
	}
	require.Len(t, replies, 3)
	assert.Equal(t, "PONG", replies[0].(*protocol.StatusReply).Status)
	assert.Equal(t, int64(2), replies[1].(*protocol.IntReply).Code)
	assert.Equal(t, []byte("foo"), replies[2].(*protocol.BulkReply).Arg)
}

func TestParseOneProtocolError(t *testing.T) {
	for _, input := range []string{"?bad\r\n", ":abc\r\n", "$x\r\n"} {
		_, err := ParseOne([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}
