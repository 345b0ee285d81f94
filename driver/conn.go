// Package driver 是面向调用方的命令门面
// 一个Conn代表一条逻辑连接：它持有执行模式状态机（立即/流水线/事务），
// 把类型化的命令方法翻译成命令行交给store执行，并把节点结果转换成规范值
package driver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iverson3/xvalkey/cluster"
	"github.com/iverson3/xvalkey/config"
	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/protocol"
	"github.com/iverson3/xvalkey/standalone"
)

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

type execMode int

const (
	modeImmediate execMode = iota
	modePipelined
	modeTransactional
)

// pendingCommand 排队中的一条命令及其结果形状
// 队列有序，结果必须按入队顺序返回
type pendingCommand struct {
	cmdLine CmdLine
	keys    []string
	shape   shape
}

// Result 是批量提交中单条命令的结果
// 单条命令的失败只体现在自己的位置上，不影响同批的其他命令
type Result struct {
	Value interface{}
	Err   error
}

// Conn 是一条逻辑连接
// 非并发安全：流水线和事务的排队天然不可重入，多个调用方交错入队
// 会破坏结果顺序。并发调用方应各自持有独立的Conn，它们共享底层store
type Conn struct {
	store store.Store

	mode    execMode
	pending []pendingCommand

	// 事务的独占连接，WATCH时借出，EXEC/DISCARD/UNWATCH后归还
	txConn   store.TxConn
	watching bool

	logger *zap.Logger
}

// NewConn 在给定store之上创建一条逻辑连接
// 多条连接可共享同一个store实例（以及它背后的拓扑缓存与连接池）
func NewConn(s store.Store) *Conn {
	return &Conn{
		store:  s,
		mode:   modeImmediate,
		logger: logger.Named("driver"),
	}
}

// Open 按配置建立store并返回第一条逻辑连接
func Open(cfg *config.Config) (*Conn, error) {
	logger.Init(cfg.LogLevel)
	var s store.Store
	var err error
	if cfg.Cluster {
		s, err = cluster.New(cfg)
	} else {
		s, err = standalone.New(cfg)
	}
	if err != nil {
		return nil, err
	}
	return NewConn(s), nil
}

// Store 返回底层store，用于在其上创建更多逻辑连接
func (c *Conn) Store() store.Store {
	return c.store
}

// Close 释放事务连接并关闭底层store
func (c *Conn) Close() error {
	if c.txConn != nil {
		_ = c.txConn.Release()
		c.txConn = nil
	}
	return c.store.Close()
}

// IsPipelined 当前是否处于流水线模式
func (c *Conn) IsPipelined() bool {
	return c.mode == modePipelined
}

// IsQueueing 当前是否处于事务排队模式
func (c *Conn) IsQueueing() bool {
	return c.mode == modeTransactional
}

// dispatch 是所有类型化命令方法的汇合点
// 立即模式下同步执行并转换；排队模式下只记录命令，返回零值哨兵
func (c *Conn) dispatch(keys []string, s shape, cmdLine CmdLine) (interface{}, error) {
	switch c.mode {
	case modeImmediate:
		reply, err := c.store.Exec(cmdLine)
		if err != nil {
			return nil, err
		}
		return convert(reply, s)
	default:
		c.pending = append(c.pending, pendingCommand{
			cmdLine: cmdLine,
			keys:    keys,
			shape:   s,
		})
		return nil, nil
	}
}

// immediateOnly 部分命令（广播、节点定向）没有排队语义
func (c *Conn) immediateOnly(name string) error {
	if c.mode != modeImmediate {
		return &InvalidModeError{Message: name + " is only available in immediate mode"}
	}
	return nil
}

// 类型化的dispatch包装，排队时返回零值

func (c *Conn) boolResult(keys []string, s shape, cmdLine CmdLine) (bool, error) {
	v, err := c.dispatch(keys, s, cmdLine)
	if err != nil || v == nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Conn) intResult(keys []string, cmdLine CmdLine) (int64, error) {
	v, err := c.dispatch(keys, shapeInt, cmdLine)
	if err != nil || v == nil {
		return 0, err
	}
	return v.(int64), nil
}

func (c *Conn) floatResult(keys []string, cmdLine CmdLine) (float64, error) {
	v, err := c.dispatch(keys, shapeFloat, cmdLine)
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *Conn) bytesResult(keys []string, cmdLine CmdLine) ([]byte, error) {
	v, err := c.dispatch(keys, shapeBytes, cmdLine)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Conn) stringResult(keys []string, s shape, cmdLine CmdLine) (string, error) {
	v, err := c.dispatch(keys, s, cmdLine)
	if err != nil || v == nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Conn) listResult(keys []string, cmdLine CmdLine) ([][]byte, error) {
	v, err := c.dispatch(keys, shapeList, cmdLine)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([][]byte), nil
}

func (c *Conn) stringListResult(keys []string, cmdLine CmdLine) ([]string, error) {
	v, err := c.dispatch(keys, shapeStringList, cmdLine)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Conn) mapResult(keys []string, cmdLine CmdLine) (map[string]string, error) {
	v, err := c.dispatch(keys, shapeMap, cmdLine)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// Do 透传一条任意命令，结果按种类做通用转换，供REPL等工具使用
// 只在立即模式下可用
func (c *Conn) Do(args ...string) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("xvalkey: empty command")
	}
	if err := c.immediateOnly("Do"); err != nil {
		return nil, err
	}
	reply, err := c.store.Exec(utils.ToCmdLine(args...))
	if err != nil {
		return nil, err
	}
	return convertAny(reply)
}

// OpenPipeline 进入流水线模式，重复调用是幂等的
// 事务进行中不允许再开流水线
func (c *Conn) OpenPipeline() error {
	switch c.mode {
	case modeTransactional:
		return &InvalidModeError{Message: "cannot pipeline during a transaction"}
	default:
		c.mode = modePipelined
		return nil
	}
}

// ClosePipeline 把排队的命令作为一批提交，按入队顺序返回转换后的结果
// 立即模式下调用是无害的，返回空列表；单条命令的失败不影响同批其他命令
func (c *Conn) ClosePipeline() ([]Result, error) {
	switch c.mode {
	case modeImmediate:
		return []Result{}, nil
	case modeTransactional:
		return nil, &InvalidModeError{Message: "cannot close a pipeline during a transaction"}
	}

	pending := c.pending
	c.pending = nil
	c.mode = modeImmediate

	if len(pending) == 0 {
		return []Result{}, nil
	}

	cmdLines := make([]CmdLine, len(pending))
	for i, p := range pending {
		cmdLines[i] = p.cmdLine
	}
	replies, err := c.store.ExecBatch(cmdLines)
	if err != nil {
		return nil, err
	}
	if len(replies) != len(pending) {
		return nil, fmt.Errorf("xvalkey: batch returned %d results for %d commands", len(replies), len(pending))
	}

	results := make([]Result, len(pending))
	for i, p := range pending {
		v, convErr := convert(replies[i], p.shape)
		results[i] = Result{Value: v, Err: convErr}
	}
	return results, nil
}

// Multi 进入事务排队模式，重复调用是幂等的
// 流水线进行中不允许开事务
func (c *Conn) Multi() error {
	switch c.mode {
	case modePipelined:
		return &InvalidModeError{Message: "cannot start a transaction inside a pipeline"}
	default:
		c.mode = modeTransactional
		return nil
	}
}

// Exec 提交事务：MULTI、排队命令和EXEC以一次网络往返发出
// WATCH冲突导致的中止是正常结果，返回空列表而不是错误
func (c *Conn) Exec() ([]Result, error) {
	if c.mode != modeTransactional {
		return nil, &InvalidModeError{Message: "no ongoing transaction"}
	}

	pending := c.pending
	c.pending = nil
	c.mode = modeImmediate

	tx, err := c.txConnFor(pending)
	if err != nil {
		c.releaseTxConn()
		return nil, err
	}
	if tx == nil {
		// 没排队命令也没WATCH，无事可做
		return []Result{}, nil
	}
	defer c.releaseTxConn()

	cmdLines := make([]CmdLine, 0, len(pending)+2)
	cmdLines = append(cmdLines, utils.ToCmdLine("MULTI"))
	for _, p := range pending {
		cmdLines = append(cmdLines, p.cmdLine)
	}
	cmdLines = append(cmdLines, utils.ToCmdLine("EXEC"))

	replies, err := tx.SendBatch(cmdLines)
	if err != nil {
		return nil, err
	}
	if len(replies) != len(cmdLines) {
		return nil, fmt.Errorf("xvalkey: transaction returned %d results for %d commands", len(replies), len(cmdLines))
	}
	return c.convertExecReply(pending, replies[len(replies)-1])
}

// txConnFor 为事务选定独占连接
// WATCH已借出连接时沿用它，并校验排队命令的键确实归属该节点；
// 否则按排队命令的键借一条新的。没有键约束时返回nil表示无事可做
func (c *Conn) txConnFor(pending []pendingCommand) (store.TxConn, error) {
	keys := make([]string, 0)
	for _, p := range pending {
		keys = append(keys, p.keys...)
	}

	if c.txConn != nil {
		if len(keys) > 0 {
			node, err := c.store.NodeFor(keys...)
			if err != nil {
				return nil, err
			}
			if node != c.txConn.Node() {
				return nil, fmt.Errorf("%w: transaction keys map to %s but WATCH is bound to %s",
					store.ErrCrossSlot, node, c.txConn.Node())
			}
		}
		return c.txConn, nil
	}

	if len(pending) == 0 {
		return nil, nil
	}
	tx, err := c.store.BorrowTxConn(keys)
	if err != nil {
		return nil, err
	}
	c.txConn = tx
	return tx, nil
}

// convertExecReply 把EXEC的数组结果逐位转换
// 解析层会把全bulk的扁平数组降级为MultiBulkReply，两种形态都要接住
func (c *Conn) convertExecReply(pending []pendingCommand, reply redis.Reply) ([]Result, error) {
	switch r := reply.(type) {
	case *protocol.NullMultiBulkReply:
		// WATCH冲突，事务被中止，排队命令全部未生效
		return []Result{}, nil
	case *protocol.EmptyMultiBulkReply:
		return []Result{}, nil
	case *protocol.MultiRawReply:
		if len(r.Replies) != len(pending) {
			return nil, fmt.Errorf("xvalkey: transaction returned %d results for %d commands", len(r.Replies), len(pending))
		}
		results := make([]Result, len(pending))
		for i, p := range pending {
			v, convErr := convert(r.Replies[i], p.shape)
			results[i] = Result{Value: v, Err: convErr}
		}
		return results, nil
	case *protocol.MultiBulkReply:
		if len(r.Args) != len(pending) {
			return nil, fmt.Errorf("xvalkey: transaction returned %d results for %d commands", len(r.Args), len(pending))
		}
		results := make([]Result, len(pending))
		for i, p := range pending {
			var elem redis.Reply
			if r.Args[i] == nil {
				elem = protocol.MakeNullBulkReply()
			} else {
				elem = protocol.MakeBulkReply(r.Args[i])
			}
			v, convErr := convert(elem, p.shape)
			results[i] = Result{Value: v, Err: convErr}
		}
		return results, nil
	default:
		if errReply, ok := reply.(protocol.ErrorReply); ok {
			return nil, &CommandError{Message: errReply.Error()}
		}
		return nil, mismatch("transaction result array", reply)
	}
}

// Discard 丢弃排队中的事务命令，不执行任何一条
func (c *Conn) Discard() error {
	if c.mode != modeTransactional {
		return &InvalidModeError{Message: "no ongoing transaction"}
	}
	c.pending = nil
	c.mode = modeImmediate
	c.releaseTxConn()
	return nil
}

// Watch 对键设置乐观锁，键被外部修改后EXEC会中止
// WATCH借出一条独占节点连接，事务结束前不归还；所有被WATCH的键
// 和事务中的键必须落在同一节点
func (c *Conn) Watch(keys ...string) error {
	if c.mode == modeTransactional {
		return &InvalidModeError{Message: "WATCH is not allowed during MULTI"}
	}
	if c.mode == modePipelined {
		return &InvalidModeError{Message: "WATCH is not allowed inside a pipeline"}
	}
	if len(keys) == 0 {
		return errors.New("xvalkey: WATCH requires at least one key")
	}

	if c.txConn == nil {
		tx, err := c.store.BorrowTxConn(keys)
		if err != nil {
			return err
		}
		c.txConn = tx
	} else {
		node, err := c.store.NodeFor(keys...)
		if err != nil {
			return err
		}
		if node != c.txConn.Node() {
			return fmt.Errorf("%w: watched keys map to %s but connection is bound to %s",
				store.ErrCrossSlot, node, c.txConn.Node())
		}
	}

	reply := c.txConn.Send(utils.ToCmdLine2("WATCH", keys...))
	if errReply, ok := reply.(protocol.ErrorReply); ok {
		c.releaseTxConn()
		return &CommandError{Message: errReply.Error()}
	}
	c.watching = true
	return nil
}

// IsWatching 是否有生效中的WATCH
func (c *Conn) IsWatching() bool {
	return c.watching
}

// Unwatch 取消所有WATCH并归还独占连接
// 没有生效中的WATCH时不触网，直接返回
func (c *Conn) Unwatch() error {
	if c.mode == modeTransactional {
		return &InvalidModeError{Message: "UNWATCH is not allowed during MULTI"}
	}
	if !c.watching || c.txConn == nil {
		return nil
	}
	reply := c.txConn.Send(utils.ToCmdLine("UNWATCH"))
	c.releaseTxConn()
	if errReply, ok := reply.(protocol.ErrorReply); ok {
		return &CommandError{Message: errReply.Error()}
	}
	return nil
}

func (c *Conn) releaseTxConn() {
	if c.txConn == nil {
		c.watching = false
		return
	}
	if err := c.txConn.Release(); err != nil {
		c.logger.Warn("release transaction connection failed", zap.Error(err))
	}
	c.txConn = nil
	c.watching = false
}

// Nodes 列出当前已知的主节点地址
func (c *Conn) Nodes() ([]string, error) {
	return c.store.Nodes()
}

// ClusterTopology 返回集群拓扑快照，单节点部署下返回nil
func (c *Conn) ClusterTopology() (*cluster.Topology, error) {
	if cl, ok := c.store.(*cluster.Cluster); ok {
		return cl.Topology()
	}
	return nil, nil
}
