package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 哈希命令

// HSet 写入哈希的一个字段，字段是新建时返回true
func (c *Conn) HSet(key, field string, value []byte) (bool, error) {
	return c.boolResult([]string{key}, shapeBool,
		utils.ToCmdLine3("HSET", []byte(key), []byte(field), value))
}

// HSetNX 仅当字段不存在时写入
func (c *Conn) HSetNX(key, field string, value []byte) (bool, error) {
	return c.boolResult([]string{key}, shapeBool,
		utils.ToCmdLine3("HSETNX", []byte(key), []byte(field), value))
}

// HGet 读取哈希的一个字段，字段不存在时返回Nil
func (c *Conn) HGet(key, field string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("HGET", key, field))
}

// HMGet 批量读取字段，结果与字段一一对应，缺失的字段对应nil
func (c *Conn) HMGet(key string, fields ...string) ([][]byte, error) {
	args := append([]string{key}, fields...)
	return c.listResult([]string{key}, utils.ToCmdLine2("HMGET", args...))
}

// HGetAll 读取哈希的全部字段和值
func (c *Conn) HGetAll(key string) (map[string]string, error) {
	return c.mapResult([]string{key}, utils.ToCmdLine("HGETALL", key))
}

// HDel 删除字段，返回实际删除的个数
func (c *Conn) HDel(key string, fields ...string) (int64, error) {
	args := append([]string{key}, fields...)
	return c.intResult([]string{key}, utils.ToCmdLine2("HDEL", args...))
}

// HExists 判断字段是否存在
func (c *Conn) HExists(key, field string) (bool, error) {
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine("HEXISTS", key, field))
}

// HLen 返回字段个数
func (c *Conn) HLen(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("HLEN", key))
}

// HKeys 返回全部字段名
func (c *Conn) HKeys(key string) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("HKEYS", key))
}

// HVals 返回全部字段值
func (c *Conn) HVals(key string) ([][]byte, error) {
	return c.listResult([]string{key}, utils.ToCmdLine("HVALS", key))
}

// HIncrBy 字段按整数步长自增
func (c *Conn) HIncrBy(key, field string, delta int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("HINCRBY", key, field,
		strconv.FormatInt(delta, 10)))
}

// HIncrByFloat 字段按浮点步长自增
func (c *Conn) HIncrByFloat(key, field string, delta float64) (float64, error) {
	return c.floatResult([]string{key}, utils.ToCmdLine("HINCRBYFLOAT", key, field,
		strconv.FormatFloat(delta, 'f', -1, 64)))
}
