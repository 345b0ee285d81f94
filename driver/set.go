package driver

import (
	"github.com/iverson3/xvalkey/lib/utils"
)

// 集合命令

// SAdd 添加成员，返回新增的个数
func (c *Conn) SAdd(key string, members ...string) (int64, error) {
	args := append([]string{key}, members...)
	return c.intResult([]string{key}, utils.ToCmdLine2("SADD", args...))
}

// SRem 移除成员，返回实际移除的个数
func (c *Conn) SRem(key string, members ...string) (int64, error) {
	args := append([]string{key}, members...)
	return c.intResult([]string{key}, utils.ToCmdLine2("SREM", args...))
}

// SCard 返回成员个数
func (c *Conn) SCard(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("SCARD", key))
}

// SIsMember 判断成员是否在集合中
func (c *Conn) SIsMember(key, member string) (bool, error) {
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine("SISMEMBER", key, member))
}

// SMembers 返回全部成员
func (c *Conn) SMembers(key string) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("SMEMBERS", key))
}

// SPop 随机弹出一个成员，集合为空时返回Nil
func (c *Conn) SPop(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("SPOP", key))
}

// SRandMember 随机返回一个成员但不移除
func (c *Conn) SRandMember(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("SRANDMEMBER", key))
}

// SMove 把成员从一个集合移到另一个，集群下两个键必须同slot
func (c *Conn) SMove(src, dst, member string) (bool, error) {
	return c.boolResult([]string{src, dst}, shapeBool, utils.ToCmdLine("SMOVE", src, dst, member))
}

// SDiff 返回差集，集群下所有键必须同slot
func (c *Conn) SDiff(keys ...string) ([]string, error) {
	return c.stringListResult(keys, utils.ToCmdLine2("SDIFF", keys...))
}

// SInter 返回交集
func (c *Conn) SInter(keys ...string) ([]string, error) {
	return c.stringListResult(keys, utils.ToCmdLine2("SINTER", keys...))
}

// SUnion 返回并集
func (c *Conn) SUnion(keys ...string) ([]string, error) {
	return c.stringListResult(keys, utils.ToCmdLine2("SUNION", keys...))
}

// SDiffStore 计算差集并写入目标键，返回结果集大小
func (c *Conn) SDiffStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	return c.intResult(all, utils.ToCmdLine2("SDIFFSTORE", all...))
}

// SInterStore 计算交集并写入目标键
func (c *Conn) SInterStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	return c.intResult(all, utils.ToCmdLine2("SINTERSTORE", all...))
}

// SUnionStore 计算并集并写入目标键
func (c *Conn) SUnionStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	return c.intResult(all, utils.ToCmdLine2("SUNIONSTORE", all...))
}
