package driver

import (
	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// 服务器命令
// 广播类命令没有排队语义，只在立即模式下可用；
// 带Node后缀的变体跳过路由，直达指定节点

// Ping 探活，任意主节点可达即成功
func (c *Conn) Ping() (string, error) {
	if err := c.immediateOnly("PING"); err != nil {
		return "", err
	}
	return c.stringResult(nil, shapeStatus, utils.ToCmdLine("PING"))
}

// Echo 回显
func (c *Conn) Echo(message []byte) ([]byte, error) {
	if err := c.immediateOnly("ECHO"); err != nil {
		return nil, err
	}
	return c.bytesResult(nil, utils.ToCmdLine3("ECHO", message))
}

// DBSize 返回键总数，集群下为各主节点之和
func (c *Conn) DBSize() (int64, error) {
	if err := c.immediateOnly("DBSIZE"); err != nil {
		return 0, err
	}
	return c.intResult(nil, utils.ToCmdLine("DBSIZE"))
}

// FlushDB 清空当前库，集群下作用于所有主节点，全部成功才算成功
func (c *Conn) FlushDB() (bool, error) {
	if err := c.immediateOnly("FLUSHDB"); err != nil {
		return false, err
	}
	return c.boolResult(nil, shapeOK, utils.ToCmdLine("FLUSHDB"))
}

// FlushAll 清空所有库
func (c *Conn) FlushAll() (bool, error) {
	if err := c.immediateOnly("FLUSHALL"); err != nil {
		return false, err
	}
	return c.boolResult(nil, shapeOK, utils.ToCmdLine("FLUSHALL"))
}

// Info 返回节点地址到INFO文本的映射
// 集群下广播到所有主节点；单节点下只有一个条目
func (c *Conn) Info() (map[string]string, error) {
	if err := c.immediateOnly("INFO"); err != nil {
		return nil, err
	}
	reply, err := c.store.Exec(utils.ToCmdLine("INFO"))
	if err != nil {
		return nil, err
	}
	return c.perNodeText(reply)
}

// ConfigGet 返回配置项，集群下键为"节点地址.参数名"
func (c *Conn) ConfigGet(parameter string) (map[string]string, error) {
	if err := c.immediateOnly("CONFIG GET"); err != nil {
		return nil, err
	}
	v, err := c.mapResult(nil, utils.ToCmdLine("CONFIG", "GET", parameter))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// perNodeText 把INFO的结果整理成节点地址到文本的映射
// 集群合并后是扁平的[地址, 文本, ...]数组；单节点是原始文本
func (c *Conn) perNodeText(reply redis.Reply) (map[string]string, error) {
	switch r := reply.(type) {
	case protocol.ErrorReply:
		return nil, &CommandError{Message: r.Error()}
	case *protocol.BulkReply:
		nodes, err := c.store.Nodes()
		if err != nil || len(nodes) == 0 {
			return nil, err
		}
		return map[string]string{nodes[0]: string(r.Arg)}, nil
	case *protocol.MultiBulkReply:
		v, err := convertMap(r)
		if err != nil {
			return nil, err
		}
		return v.(map[string]string), nil
	default:
		return nil, mismatch("info text", r)
	}
}

// PingNode 探活指定节点
func (c *Conn) PingNode(node string) (string, error) {
	if err := c.immediateOnly("PING"); err != nil {
		return "", err
	}
	reply, err := c.store.ExecOn(node, utils.ToCmdLine("PING"))
	if err != nil {
		return "", err
	}
	v, err := convert(reply, shapeStatus)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DBSizeNode 返回指定节点的键总数
func (c *Conn) DBSizeNode(node string) (int64, error) {
	if err := c.immediateOnly("DBSIZE"); err != nil {
		return 0, err
	}
	reply, err := c.store.ExecOn(node, utils.ToCmdLine("DBSIZE"))
	if err != nil {
		return 0, err
	}
	v, err := convert(reply, shapeInt)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// InfoNode 返回指定节点的INFO文本
func (c *Conn) InfoNode(node string) (string, error) {
	if err := c.immediateOnly("INFO"); err != nil {
		return "", err
	}
	reply, err := c.store.ExecOn(node, utils.ToCmdLine("INFO"))
	if err != nil {
		return "", err
	}
	v, err := convert(reply, shapeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// FlushDBNode 清空指定节点的当前库
func (c *Conn) FlushDBNode(node string) (bool, error) {
	if err := c.immediateOnly("FLUSHDB"); err != nil {
		return false, err
	}
	reply, err := c.store.ExecOn(node, utils.ToCmdLine("FLUSHDB"))
	if err != nil {
		return false, err
	}
	v, err := convert(reply, shapeOK)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
