// Package standalone 实现面向单节点部署的store.Store
// 没有slot路由：所有命令都发往同一个节点，多键命令天然同节点
package standalone

import (
	"context"
	"errors"
	"fmt"

	pool "github.com/jolestar/go-commons-pool/v2"
	"go.uber.org/zap"

	"github.com/iverson3/xvalkey/config"
	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/client"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

// Node 是单节点的客户端视图，实现store.Store
type Node struct {
	addr string
	pool *pool.ObjectPool

	logger *zap.Logger
}

var _ store.Store = (*Node)(nil)

// New 构建单节点客户端，取配置中的第一个地址
func New(cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addr := cfg.Addrs[0]
	return &Node{
		addr:   addr,
		pool:   newConnPool(addr, cfg.Password, cfg.PoolMaxTotal),
		logger: logger.Named("standalone"),
	}, nil
}

func (node *Node) borrow() (*client.Client, error) {
	raw, err := node.pool.BorrowObject(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNoReachableNode, err)
	}
	conn, ok := raw.(*client.Client)
	if !ok {
		return nil, errors.New("connection pool made wrong type")
	}
	return conn, nil
}

func (node *Node) release(conn *client.Client) {
	if err := node.pool.ReturnObject(context.Background(), conn); err != nil {
		node.logger.Warn("return connection failed", zap.Error(err))
	}
}

// Exec 在节点上执行一条命令
func (node *Node) Exec(cmdLine CmdLine) (redis.Reply, error) {
	conn, err := node.borrow()
	if err != nil {
		return nil, err
	}
	defer node.release(conn)
	return conn.Send(cmdLine), nil
}

// ExecBatch 把一批命令作为流水线提交，一次网络往返
func (node *Node) ExecBatch(cmdLines []CmdLine) ([]redis.Reply, error) {
	if len(cmdLines) == 0 {
		return nil, nil
	}
	conn, err := node.borrow()
	if err != nil {
		return nil, err
	}
	defer node.release(conn)
	return conn.SendBatch(cmdLines)
}

// ExecOn 校验地址后执行，单节点只认自己的地址
func (node *Node) ExecOn(addr string, cmdLine CmdLine) (redis.Reply, error) {
	if addr != node.addr {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownNode, addr)
	}
	return node.Exec(cmdLine)
}

// NodeFor 单节点部署下所有键都归本节点
func (node *Node) NodeFor(keys ...string) (string, error) {
	return node.addr, nil
}

// BorrowTxConn 借出独占连接承载WATCH和MULTI/EXEC
func (node *Node) BorrowTxConn(keys []string) (store.TxConn, error) {
	conn, err := node.borrow()
	if err != nil {
		return nil, err
	}
	return &txConn{node: node, conn: conn}, nil
}

// Nodes 返回唯一的节点地址
func (node *Node) Nodes() ([]string, error) {
	return []string{node.addr}, nil
}

// Close 关闭连接池
func (node *Node) Close() error {
	node.pool.Close(context.Background())
	return nil
}

type txConn struct {
	node *Node
	conn *client.Client
}

var _ store.TxConn = (*txConn)(nil)

func (t *txConn) Node() string {
	return t.node.addr
}

func (t *txConn) Send(cmdLine CmdLine) redis.Reply {
	return t.conn.Send(cmdLine)
}

func (t *txConn) SendBatch(cmdLines []CmdLine) ([]redis.Reply, error) {
	return t.conn.SendBatch(cmdLines)
}

func (t *txConn) Release() error {
	return t.node.pool.ReturnObject(context.Background(), t.conn)
}

// connectionFactory 与cluster包的池工厂一致，按单个地址生产wire client
type connectionFactory struct {
	addr     string
	password string
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := client.MakeClient(f.addr)
	if err != nil {
		return nil, err
	}
	c.Start()

	if f.password != "" {
		reply := c.Send(utils.ToCmdLine("AUTH", f.password))
		if protocol.IsErrorReply(reply) {
			c.Close()
			return nil, errors.New(reply.(protocol.ErrorReply).Error())
		}
	}
	return pool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*client.Client)
	if !ok {
		return errors.New("type mismatch")
	}
	c.Close()
	return nil
}

func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	c, ok := object.Object.(*client.Client)
	if !ok {
		return false
	}
	reply := c.Send(utils.ToCmdLine("PING"))
	return !protocol.IsErrorReply(reply)
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func newConnPool(addr string, password string, maxTotal int) *pool.ObjectPool {
	ctx := context.Background()
	factory := &connectionFactory{addr: addr, password: password}
	cfg := pool.NewDefaultPoolConfig()
	cfg.TestOnBorrow = true
	if maxTotal > 0 {
		cfg.MaxTotal = maxTotal
	}
	return pool.NewObjectPool(ctx, factory, cfg)
}
