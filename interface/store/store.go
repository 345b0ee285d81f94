package store

import (
	"github.com/iverson3/xvalkey/interface/redis"
)

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

// Store 是面向驱动的命令执行后端
// cluster.Cluster 和 standalone.Node 分别针对集群拓扑和单节点拓扑实现该接口
// 驱动层(driver.Conn)只通过这个接口下发命令，不感知具体拓扑
type Store interface {
	// Exec 立即执行一条命令，路由由实现决定
	// 返回的error只代表路由或连接层面的失败，节点返回的错误以ErrorReply的形式出现在Reply中
	Exec(cmdLine CmdLine) (redis.Reply, error)

	// ExecBatch 将一批命令作为流水线提交，结果顺序与cmdLines一致
	// 单条命令的失败体现在对应位置的ErrorReply上，不会使整批失败
	ExecBatch(cmdLines []CmdLine) ([]redis.Reply, error)

	// ExecOn 在指定的节点上执行命令，跳过路由
	ExecOn(node string, cmdLine CmdLine) (redis.Reply, error)

	// NodeFor 返回给定键集合的目标节点
	// 键分属不同slot时返回ErrCrossSlot；没有键时返回任意节点
	NodeFor(keys ...string) (string, error)

	// BorrowTxConn 借出一条绑定到单个节点的独占连接
	// WATCH与MULTI/EXEC必须落在同一条连接上，该连接在事务期间不归还连接池
	BorrowTxConn(keys []string) (TxConn, error)

	// Nodes 列出当前已知的主节点地址
	Nodes() ([]string, error)

	Close() error
}

// TxConn 是独占的单节点连接，用于承载WATCH状态和事务提交
type TxConn interface {
	// Node 返回连接绑定的节点地址
	Node() string

	// Send 在该连接上执行一条命令
	Send(cmdLine CmdLine) redis.Reply

	// SendBatch 在该连接上以单次网络往返提交一批命令
	SendBatch(cmdLines []CmdLine) ([]redis.Reply, error)

	// Release 将连接归还给所属的池
	Release() error
}
