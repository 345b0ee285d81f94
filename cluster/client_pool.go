package cluster

import (
	"context"
	"errors"

	pool "github.com/jolestar/go-commons-pool/v2"

	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/client"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// connectionFactory 为单个节点生产wire client，交给go-commons-pool管理
type connectionFactory struct {
	Peer     string
	Password string
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := client.MakeClient(f.Peer)
	if err != nil {
		return nil, err
	}
	c.Start()

	if f.Password != "" {
		reply := c.Send(utils.ToCmdLine("AUTH", f.Password))
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

// newNodePool 为节点创建连接池
func newNodePool(peer string, password string, maxTotal int) *pool.ObjectPool {
	ctx := context.Background()
	factory := &connectionFactory{Peer: peer, Password: password}
	cfg := pool.NewDefaultPoolConfig()
	cfg.TestOnBorrow = true
	if maxTotal > 0 {
		cfg.MaxTotal = maxTotal
	}
	return pool.NewObjectPool(ctx, factory, cfg)
}
