package redis

// Reply 表示一条redis协议消息，既可以是发往节点的命令，也可以是节点返回的结果
type Reply interface {
	ToBytes() []byte
}
