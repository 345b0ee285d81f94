package protocol

import (
	"strconv"
	"strings"

	"github.com/iverson3/xvalkey/interface/redis"
)

// ErrorReply 节点返回的错误结果
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

// StandardErrReply 通用错误结果，如 -ERR xxx
type StandardErrReply struct {
	Status string
}

func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{
		Status: status,
	}
}

func (r *StandardErrReply) Error() string {
	return r.Status
}

func (r *StandardErrReply) ToBytes() []byte {
	return []byte("-" + r.Status + CRLF)
}

// IsErrorReply 判断结果是否为错误
func IsErrorReply(reply redis.Reply) bool {
	if reply == nil {
		return false
	}
	_, ok := reply.(ErrorReply)
	return ok
}

// Redirect 是节点返回的重定向信号，说明slot已不在被询问的节点上
type Redirect struct {
	Slot uint32
	Addr string
	Ask  bool // true表示ASK重定向（迁移中），false表示MOVED（已迁移）
}

// ParseRedirect 从错误消息中解析MOVED/ASK重定向
// 格式: "MOVED 3999 127.0.0.1:6381" 或 "ASK 3999 127.0.0.1:6381"
func ParseRedirect(errMsg string) (*Redirect, bool) {
	var ask bool
	switch {
	case strings.HasPrefix(errMsg, "MOVED "):
		ask = false
	case strings.HasPrefix(errMsg, "ASK "):
		ask = true
	default:
		return nil, false
	}

	fields := strings.Fields(errMsg)
	if len(fields) != 3 {
		return nil, false
	}
	slot, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, false
	}
	return &Redirect{
		Slot: uint32(slot),
		Addr: fields[2],
		Ask:  ask,
	}, true
}
