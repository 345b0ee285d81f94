package driver

import "time"

// 命令面按数据类型拆成能力接口，Conn组合实现全部能力
// 调用方可以只依赖自己用到的那部分

// KeyCommands 通用键操作
type KeyCommands interface {
	Del(keys ...string) (int64, error)
	Unlink(keys ...string) (int64, error)
	Exists(keys ...string) (int64, error)
	Type(key string) (string, error)
	Expire(key string, ttl time.Duration) (bool, error)
	PExpire(key string, ttl time.Duration) (bool, error)
	ExpireAt(key string, at time.Time) (bool, error)
	Persist(key string) (bool, error)
	TTL(key string) (time.Duration, error)
	PTTL(key string) (time.Duration, error)
	Rename(key, newKey string) (bool, error)
	RenameNX(key, newKey string) (bool, error)
	Keys(pattern string) ([]string, error)
}

// StringCommands 字符串操作
type StringCommands interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) (bool, error)
	SetNX(key string, value []byte) (bool, error)
	SetEX(key string, value []byte, ttl time.Duration) (bool, error)
	GetSet(key string, value []byte) ([]byte, error)
	GetDel(key string) ([]byte, error)
	Append(key string, value []byte) (int64, error)
	StrLen(key string) (int64, error)
	Incr(key string) (int64, error)
	IncrBy(key string, delta int64) (int64, error)
	Decr(key string) (int64, error)
	MGet(keys ...string) ([][]byte, error)
	MSet(pairs map[string][]byte) (bool, error)
}

// BitCommands 位图操作
type BitCommands interface {
	GetBit(key string, offset int64) (int64, error)
	SetBit(key string, offset int64, value int) (int64, error)
	BitCount(key string) (int64, error)
	BitCountRange(key string, start, end int64) (int64, error)
	BitPos(key string, bit int) (int64, error)
	BitOp(op string, destKey string, srcKeys ...string) (int64, error)
}

// HashCommands 哈希操作
type HashCommands interface {
	HSet(key, field string, value []byte) (bool, error)
	HGet(key, field string) ([]byte, error)
	HMGet(key string, fields ...string) ([][]byte, error)
	HGetAll(key string) (map[string]string, error)
	HDel(key string, fields ...string) (int64, error)
	HExists(key, field string) (bool, error)
	HLen(key string) (int64, error)
}

// SetCommands 集合操作
type SetCommands interface {
	SAdd(key string, members ...string) (int64, error)
	SRem(key string, members ...string) (int64, error)
	SCard(key string) (int64, error)
	SIsMember(key, member string) (bool, error)
	SMembers(key string) ([]string, error)
	SDiff(keys ...string) ([]string, error)
	SInter(keys ...string) ([]string, error)
	SUnion(keys ...string) ([]string, error)
}

// ListCommands 列表操作
type ListCommands interface {
	LPush(key string, values ...[]byte) (int64, error)
	RPush(key string, values ...[]byte) (int64, error)
	LPop(key string) ([]byte, error)
	RPop(key string) ([]byte, error)
	LLen(key string) (int64, error)
	LRange(key string, start, stop int64) ([][]byte, error)
}

// ZSetCommands 有序集合操作
type ZSetCommands interface {
	ZAdd(key string, members ...Z) (int64, error)
	ZScore(key, member string) (float64, error)
	ZRem(key string, members ...string) (int64, error)
	ZCard(key string) (int64, error)
	ZRange(key string, start, stop int64) ([]string, error)
	ZRangeWithScores(key string, start, stop int64) ([]Z, error)
	ZRank(key, member string) (int64, error)
}

// HyperLogLogCommands 基数估计操作
type HyperLogLogCommands interface {
	PFAdd(key string, elements ...string) (bool, error)
	PFCount(keys ...string) (int64, error)
	PFMerge(dst string, srcKeys ...string) (bool, error)
}

// StreamCommands 流操作
type StreamCommands interface {
	XAdd(key, id string, fields map[string]string) (string, error)
	XLen(key string) (int64, error)
	XRange(key, start, end string) ([]XEntry, error)
	XDel(key string, ids ...string) (int64, error)
}

// GeoCommands 地理位置操作
type GeoCommands interface {
	GeoAdd(key string, members ...GeoMember) (int64, error)
	GeoDist(key, member1, member2, unit string) (float64, error)
	GeoPos(key string, members ...string) ([]*GeoPos, error)
}

// ServerCommands 服务器与集群管理操作
type ServerCommands interface {
	Ping() (string, error)
	DBSize() (int64, error)
	FlushAll() (bool, error)
	Info() (map[string]string, error)
	ConfigGet(parameter string) (map[string]string, error)
	Nodes() ([]string, error)
}

// TxCommands 执行模式控制
type TxCommands interface {
	OpenPipeline() error
	ClosePipeline() ([]Result, error)
	Multi() error
	Exec() ([]Result, error)
	Discard() error
	Watch(keys ...string) error
	Unwatch() error
	IsPipelined() bool
	IsQueueing() bool
	IsWatching() bool
}

// Commands 是完整的命令面
type Commands interface {
	KeyCommands
	StringCommands
	BitCommands
	HashCommands
	SetCommands
	ListCommands
	ZSetCommands
	HyperLogLogCommands
	StreamCommands
	GeoCommands
	ServerCommands
	TxCommands
}

var _ Commands = (*Conn)(nil)
