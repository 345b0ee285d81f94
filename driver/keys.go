package driver

import (
	"strconv"
	"time"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 通用键命令

// Del 删除键，返回实际删除的个数
// 键可以跨slot，底层按节点分组执行后求和
func (c *Conn) Del(keys ...string) (int64, error) {
	return c.intResult(keys, utils.ToCmdLine2("DEL", keys...))
}

// Unlink 异步删除键，返回实际解除的个数
func (c *Conn) Unlink(keys ...string) (int64, error) {
	return c.intResult(keys, utils.ToCmdLine2("UNLINK", keys...))
}

// Exists 返回存在的键个数，重复的键重复计数
func (c *Conn) Exists(keys ...string) (int64, error) {
	return c.intResult(keys, utils.ToCmdLine2("EXISTS", keys...))
}

// Type 返回键的数据类型名
func (c *Conn) Type(key string) (string, error) {
	return c.stringResult([]string{key}, shapeStatus, utils.ToCmdLine("TYPE", key))
}

// Expire 设置键的存活时间，键不存在时返回false
func (c *Conn) Expire(key string, ttl time.Duration) (bool, error) {
	seconds := strconv.FormatInt(int64(ttl.Seconds()), 10)
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine("EXPIRE", key, seconds))
}

// PExpire 以毫秒为单位设置键的存活时间
func (c *Conn) PExpire(key string, ttl time.Duration) (bool, error) {
	millis := strconv.FormatInt(ttl.Milliseconds(), 10)
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine("PEXPIRE", key, millis))
}

// ExpireAt 设置键的绝对过期时刻
func (c *Conn) ExpireAt(key string, at time.Time) (bool, error) {
	return c.boolResult([]string{key}, shapeBool,
		utils.ToCmdLine("EXPIREAT", key, strconv.FormatInt(at.Unix(), 10)))
}

// Persist 移除键的过期时间
func (c *Conn) Persist(key string) (bool, error) {
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine("PERSIST", key))
}

// TTL 返回键的剩余存活时间
// 键不存在返回-2秒，键存在但无过期返回-1秒，与节点语义一致
func (c *Conn) TTL(key string) (time.Duration, error) {
	n, err := c.intResult([]string{key}, utils.ToCmdLine("TTL", key))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// PTTL 返回键的剩余存活时间，毫秒精度
func (c *Conn) PTTL(key string) (time.Duration, error) {
	n, err := c.intResult([]string{key}, utils.ToCmdLine("PTTL", key))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

// Rename 重命名键，集群下源和目标必须同slot
func (c *Conn) Rename(key, newKey string) (bool, error) {
	return c.boolResult([]string{key, newKey}, shapeOK, utils.ToCmdLine("RENAME", key, newKey))
}

// RenameNX 仅当目标键不存在时重命名
func (c *Conn) RenameNX(key, newKey string) (bool, error) {
	return c.boolResult([]string{key, newKey}, shapeBool, utils.ToCmdLine("RENAMENX", key, newKey))
}

// Keys 返回匹配模式的所有键
// 集群下广播到所有主节点并取并集，只在立即模式下可用
func (c *Conn) Keys(pattern string) ([]string, error) {
	if err := c.immediateOnly("KEYS"); err != nil {
		return nil, err
	}
	return c.stringListResult(nil, utils.ToCmdLine("KEYS", pattern))
}
