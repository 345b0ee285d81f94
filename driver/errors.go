package driver

import "errors"

// Nil 表示节点返回了空值（键不存在、成员不存在等）
// 它不是故障，调用方用errors.Is(err, Nil)区分"没有值"和"出错了"
var Nil = errors.New("xvalkey: nil")

// InvalidModeError 非法的执行模式切换，属于调用方的使用错误
// 在发起任何网络调用之前同步返回
type InvalidModeError struct {
	Message string
}

func (e *InvalidModeError) Error() string {
	return "xvalkey: " + e.Message
}

// CommandError 节点针对单条命令返回的错误，如WRONGTYPE
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// ProtocolMismatchError 节点结果的类型与命令约定的形状不符
// 说明出现了版本偏差或数据损坏，对该次调用是致命的，不重试
type ProtocolMismatchError struct {
	Expected string
	Got      string
}

func (e *ProtocolMismatchError) Error() string {
	return "xvalkey: protocol mismatch: expected " + e.Expected + ", got " + e.Got
}
