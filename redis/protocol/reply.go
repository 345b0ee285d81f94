package protocol

import (
	"bytes"
	"strconv"

	"github.com/iverson3/xvalkey/interface/redis"
)

var (
	// CRLF 是redis协议的行分隔符
	CRLF = "\r\n"

	nullBulkBytes       = []byte("$-1" + CRLF)
	emptyMultiBulkBytes = []byte("*0" + CRLF)
	nullMultiBulkBytes  = []byte("*-1" + CRLF)
)

// StatusReply 单行状态结果，如 +OK
type StatusReply struct {
	Status string
}

func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{
		Status: status,
	}
}

func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

// IsOKReply 判断结果是否为 +OK
func IsOKReply(reply redis.Reply) bool {
	if _, ok := reply.(*OkReply); ok {
		return true
	}
	status, ok := reply.(*StatusReply)
	return ok && status.Status == "OK"
}

// OkReply is +OK
type OkReply struct{}

var okBytes = []byte("+OK" + CRLF)

func (r *OkReply) ToBytes() []byte {
	return okBytes
}

var theOkReply = new(OkReply)

func MakeOkReply() *OkReply {
	return theOkReply
}

// PongReply is +PONG
type PongReply struct{}

var pongBytes = []byte("+PONG" + CRLF)

func (r *PongReply) ToBytes() []byte {
	return pongBytes
}

// IntReply 整数结果，如 :1
type IntReply struct {
	Code int64
}

func MakeIntReply(code int64) *IntReply {
	return &IntReply{
		Code: code,
	}
}

func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

// BulkReply 二进制安全的单值结果
type BulkReply struct {
	Arg []byte
}

func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{
		Arg: arg,
	}
}

func (r *BulkReply) ToBytes() []byte {
	if r.Arg == nil {
		return nullBulkBytes
	}
	return []byte("$" + strconv.Itoa(len(r.Arg)) + CRLF + string(r.Arg) + CRLF)
}

// NullBulkReply 空值结果 $-1
type NullBulkReply struct{}

func MakeNullBulkReply() *NullBulkReply {
	return &NullBulkReply{}
}

func (r *NullBulkReply) ToBytes() []byte {
	return nullBulkBytes
}

// MultiBulkReply 字符串数组结果，也是命令的编码形式
type MultiBulkReply struct {
	Args [][]byte
}

func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{
		Args: args,
	}
}

func (r *MultiBulkReply) ToBytes() []byte {
	argLen := len(r.Args)
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(argLen) + CRLF)
	for _, arg := range r.Args {
		if arg == nil {
			buf.Write(nullBulkBytes)
		} else {
			buf.WriteString("$" + strconv.Itoa(len(arg)) + CRLF + string(arg) + CRLF)
		}
	}
	return buf.Bytes()
}

// EmptyMultiBulkReply 空数组 *0
type EmptyMultiBulkReply struct{}

func MakeEmptyMultiBulkReply() *EmptyMultiBulkReply {
	return &EmptyMultiBulkReply{}
}

func (r *EmptyMultiBulkReply) ToBytes() []byte {
	return emptyMultiBulkBytes
}

// NullMultiBulkReply 空值数组 *-1
// 事务被WATCH冲突打断时，EXEC返回这种结果
type NullMultiBulkReply struct{}

func MakeNullMultiBulkReply() *NullMultiBulkReply {
	return &NullMultiBulkReply{}
}

func (r *NullMultiBulkReply) ToBytes() []byte {
	return nullMultiBulkBytes
}

// MultiRawReply 嵌套数组结果，元素本身也是Reply
// CLUSTER SLOTS、EXEC等命令返回这种结构
type MultiRawReply struct {
	Replies []redis.Reply
}

func MakeMultiRawReply(replies []redis.Reply) *MultiRawReply {
	return &MultiRawReply{
		Replies: replies,
	}
}

func (r *MultiRawReply) ToBytes() []byte {
	argLen := len(r.Replies)
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(argLen) + CRLF)
	for _, arg := range r.Replies {
		buf.Write(arg.ToBytes())
	}
	return buf.Bytes()
}
