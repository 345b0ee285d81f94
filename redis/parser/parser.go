package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/redis/protocol"

	"go.uber.org/zap"
)

// Payload 携带一条完整的协议消息或一个错误
type Payload struct {
	Data redis.Reply
	Err  error
}

// ParseStream 持续从reader解析协议消息，通过channel逐条送出
// 协议级错误作为Payload.Err送出后继续解析；IO错误送出后关闭channel
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

// ParseOne 解析data中的第一条完整消息
func ParseOne(data []byte) (redis.Reply, error) {
	reader := bufio.NewReader(bytes.NewReader(data))
	return parseReply(reader)
}

func parse0(reader io.Reader, ch chan<- *Payload) {
	defer func() {
		if err := recover(); err != nil {
			logger.Named("parser").Error("parser panic",
				zap.Any("err", err), zap.String("stack", string(debug.Stack())))
		}
	}()

	bufReader := bufio.NewReader(reader)
	for {
		reply, err := parseReply(bufReader)
		if err != nil {
			ch <- &Payload{Err: err}
			if isIOErr(err) {
				close(ch)
				return
			}
			continue
		}
		ch <- &Payload{Data: reply}
	}
}

type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return "protocol error: " + e.msg
}

func isIOErr(err error) bool {
	var pe *protocolError
	return !errors.As(err, &pe)
}

// parseReply 递归解析一条消息，数组元素逐个递归
func parseReply(reader *bufio.Reader) (redis.Reply, error) {
	line, err := readLine(reader)
	if err != nil {
		return nil, err
	}

	switch line[0] {
	case '+':
		return protocol.MakeStatusReply(string(line[1:])), nil
	case '-':
		return protocol.MakeErrReply(string(line[1:])), nil
	case ':':
		code, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, &protocolError{msg: string(line)}
		}
		return protocol.MakeIntReply(code), nil
	case '$':
		return parseBulk(line, reader)
	case '*':
		return parseArray(line, reader)
	default:
		return nil, &protocolError{msg: string(line)}
	}
}

// readLine 读取一行并去掉结尾的\r\n
func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return nil, &protocolError{msg: string(line)}
	}
	return line[:len(line)-2], nil
}

// parseBulk 解析 $<len>\r\n<data>\r\n
func parseBulk(header []byte, reader *bufio.Reader) (redis.Reply, error) {
	bulkLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || bulkLen < -1 {
		return nil, &protocolError{msg: string(header)}
	}
	if bulkLen == -1 {
		return protocol.MakeNullBulkReply(), nil
	}

	// 按头部给出的长度读取正文，再消费掉结尾的\r\n
	body := make([]byte, bulkLen+2)
	if _, err = io.ReadFull(reader, body); err != nil {
		return nil, err
	}
	if body[len(body)-2] != '\r' || body[len(body)-1] != '\n' {
		return nil, &protocolError{msg: string(header)}
	}
	return protocol.MakeBulkReply(body[:len(body)-2]), nil
}

// parseArray 解析 *<n>\r\n 后跟n个任意类型的元素
func parseArray(header []byte, reader *bufio.Reader) (redis.Reply, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 32)
	if err != nil || n < -1 {
		return nil, &protocolError{msg: string(header)}
	}
	if n == -1 {
		return protocol.MakeNullMultiBulkReply(), nil
	}
	if n == 0 {
		return protocol.MakeEmptyMultiBulkReply(), nil
	}

	replies := make([]redis.Reply, 0, n)
	flat := true
	for i := int64(0); i < n; i++ {
		element, err := parseReply(reader)
		if err != nil {
			return nil, err
		}
		switch element.(type) {
		case *protocol.BulkReply, *protocol.NullBulkReply:
		default:
			flat = false
		}
		replies = append(replies, element)
	}

	// 纯字符串数组降级为MultiBulkReply，保持老的命令结果形态
	if flat {
		args := make([][]byte, 0, n)
		for _, element := range replies {
			if bulk, ok := element.(*protocol.BulkReply); ok {
				args = append(args, bulk.Arg)
			} else {
				args = append(args, nil)
			}
		}
		return protocol.MakeMultiBulkReply(args), nil
	}
	return protocol.MakeMultiRawReply(replies), nil
}
