package client

import (
	"errors"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/lib/idgenerator"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/lib/sync/wait"
	"github.com/iverson3/xvalkey/redis/parser"
	"github.com/iverson3/xvalkey/redis/protocol"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	chanSize = 256
	maxWait  = 3 * time.Second

	statusCreated = iota
	statusRunning
	statusClosed
)

// Client 是指向单个节点的双工连接
// 写协程按入队顺序发送命令，读协程按同样的顺序把结果配对回请求，
// 因此一批命令天然以流水线方式执行，只消耗一次网络往返
type Client struct {
	conn        net.Conn
	pendingReqs chan *request // 等待发送的请求
	waitingReqs chan *request // 已发送、等待响应的请求
	ticker      *time.Ticker
	quit        chan struct{} // Close时关闭，通知心跳协程退出
	addr        string
	status      *atomic.Int32

	working *sync.WaitGroup // 等待未完成的request结束任务(发送和接收)

	idGen  *idgenerator.IDGenerator
	logger *zap.Logger
}

type request struct {
	id        int64
	args      [][]byte
	reply     redis.Reply
	heartbeat bool
	waiting   *wait.Wait
	err       error
}

// MakeClient 建立到指定节点的连接
func MakeClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:        conn,
		pendingReqs: make(chan *request, chanSize),
		waitingReqs: make(chan *request, chanSize),
		quit:        make(chan struct{}),
		addr:        addr,
		status:      atomic.NewInt32(statusCreated),
		working:     &sync.WaitGroup{},
		idGen:       idgenerator.MakeGenerator(addr),
		logger:      logger.Named("client").With(zap.String("node", addr)),
	}, nil
}

// Addr 返回节点地址
func (c *Client) Addr() string {
	return c.addr
}

// Start 启动读写协程和心跳
func (c *Client) Start() {
	c.ticker = time.NewTicker(10 * time.Second)
	go c.handleWrite()
	go c.handleRead()
	go c.heartbeat()
	c.status.Store(statusRunning)
}

// Close 优雅关闭：不再接收新请求，等在途请求完成后断开连接
func (c *Client) Close() {
	c.status.Store(statusClosed)
	c.ticker.Stop()
	// Stop不会关闭ticker的channel，心跳协程靠quit退出
	close(c.quit)

	close(c.pendingReqs)
	c.working.Wait()

	_ = c.conn.Close()
	close(c.waitingReqs)
}

// Send 发送一条命令并等待结果
// 连接层面的失败以ErrorReply的形式返回，与节点返回的错误走同一条路
func (c *Client) Send(args [][]byte) redis.Reply {
	if c.status.Load() != statusRunning {
		return protocol.MakeErrReply("client closed")
	}

	req := &request{
		id:      c.idGen.NextID(),
		args:    args,
		waiting: &wait.Wait{},
	}
	req.waiting.Add(1)
	c.working.Add(1)
	defer c.working.Done()

	c.pendingReqs <- req
	if timeout := req.waiting.WaitWithTimeout(maxWait); timeout {
		return protocol.MakeErrReply("server timeout")
	}
	if req.err != nil {
		return protocol.MakeErrReply("request failed: " + req.err.Error())
	}
	return req.reply
}

// SendBatch 以单次网络往返发送一批命令，结果与cmdLines顺序一致
// 先把整批请求全部入队再统一等待，写协程会把它们连续写出
func (c *Client) SendBatch(cmdLines [][][]byte) ([]redis.Reply, error) {
	if c.status.Load() != statusRunning {
		return nil, errors.New("client closed")
	}
	if len(cmdLines) == 0 {
		return []redis.Reply{}, nil
	}

	c.working.Add(1)
	defer c.working.Done()

	reqs := make([]*request, 0, len(cmdLines))
	for _, cmdLine := range cmdLines {
		req := &request{
			id:      c.idGen.NextID(),
			args:    cmdLine,
			waiting: &wait.Wait{},
		}
		req.waiting.Add(1)
		reqs = append(reqs, req)
		c.pendingReqs <- req
	}

	replies := make([]redis.Reply, 0, len(reqs))
	for _, req := range reqs {
		if timeout := req.waiting.WaitWithTimeout(maxWait); timeout {
			return nil, errors.New("server timeout")
		}
		if req.err != nil {
			return nil, req.err
		}
		replies = append(replies, req.reply)
	}
	return replies, nil
}

func (c *Client) heartbeat() {
	for {
		select {
		case <-c.ticker.C:
			c.doHeartbeat()
		case <-c.quit:
			return
		}
	}
}

func (c *Client) doHeartbeat() {
	req := &request{
		args:      [][]byte{[]byte("PING")},
		heartbeat: true,
		waiting:   &wait.Wait{},
	}
	req.waiting.Add(1)
	c.working.Add(1)
	defer c.working.Done()

	c.pendingReqs <- req
	req.waiting.WaitWithTimeout(maxWait)
}

func (c *Client) handleWrite() {
	for req := range c.pendingReqs {
		c.doRequest(req)
	}
}

func (c *Client) doRequest(req *request) {
	if req == nil || len(req.args) == 0 {
		return
	}

	bytes := protocol.MakeMultiBulkReply(req.args).ToBytes()
	_, err := c.conn.Write(bytes)
	// 写失败时重连并重试，最多3次
	for i := 0; err != nil && i < 3; i++ {
		err = c.handleConnectionError(err)
		if err == nil {
			_, err = c.conn.Write(bytes)
		}
	}

	if err == nil {
		c.waitingReqs <- req
	} else {
		req.err = err
		req.waiting.Done()
	}
}

func (c *Client) handleConnectionError(err error) error {
	err1 := c.conn.Close()
	if err1 != nil {
		if opErr, ok := err1.(*net.OpError); ok {
			if opErr.Err.Error() != "use of closed network connection" {
				return err1
			}
		} else {
			return err1
		}
	}

	conn, err2 := net.Dial("tcp", c.addr)
	if err2 != nil {
		c.logger.Error("reconnect failed", zap.Error(err2))
		return err2
	}
	c.conn = conn
	go c.handleRead()
	return nil
}

func (c *Client) handleRead() {
	ch := parser.ParseStream(c.conn)
	for payload := range ch {
		if payload.Err != nil {
			// 连接已不可用，挂起的请求全部以错误结束
			if c.status.Load() == statusClosed {
				return
			}
			c.finishRequest(protocol.MakeErrReply(payload.Err.Error()))
			continue
		}
		c.finishRequest(payload.Data)
	}
}

func (c *Client) finishRequest(reply redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			c.logger.Error("finish request panic",
				zap.Any("err", err), zap.String("stack", string(debug.Stack())))
		}
	}()

	req := <-c.waitingReqs
	if req == nil {
		return
	}

	req.reply = reply
	if req.waiting != nil {
		req.waiting.Done()
	}
}
