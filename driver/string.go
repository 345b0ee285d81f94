package driver

import (
	"strconv"
	"time"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 字符串命令

// Get 读取键的值，键不存在时返回Nil
func (c *Conn) Get(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("GET", key))
}

// Set 写入键的值
func (c *Conn) Set(key string, value []byte) (bool, error) {
	return c.boolResult([]string{key}, shapeOK,
		utils.ToCmdLine3("SET", []byte(key), value))
}

// SetNX 仅当键不存在时写入
func (c *Conn) SetNX(key string, value []byte) (bool, error) {
	return c.boolResult([]string{key}, shapeBool,
		utils.ToCmdLine3("SETNX", []byte(key), value))
}

// SetEX 写入键的值并设置存活时间
func (c *Conn) SetEX(key string, value []byte, ttl time.Duration) (bool, error) {
	seconds := strconv.FormatInt(int64(ttl.Seconds()), 10)
	return c.boolResult([]string{key}, shapeOK,
		utils.ToCmdLine3("SETEX", []byte(key), []byte(seconds), value))
}

// PSetEX 写入键的值并以毫秒为单位设置存活时间
func (c *Conn) PSetEX(key string, value []byte, ttl time.Duration) (bool, error) {
	millis := strconv.FormatInt(ttl.Milliseconds(), 10)
	return c.boolResult([]string{key}, shapeOK,
		utils.ToCmdLine3("PSETEX", []byte(key), []byte(millis), value))
}

// GetSet 写入新值并返回旧值，没有旧值时返回Nil
func (c *Conn) GetSet(key string, value []byte) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine3("GETSET", []byte(key), value))
}

// GetDel 读取并删除键
func (c *Conn) GetDel(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("GETDEL", key))
}

// GetRange 读取值的子串
func (c *Conn) GetRange(key string, start, end int64) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("GETRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(end, 10)))
}

// SetRange 从偏移处覆写值，返回新长度
func (c *Conn) SetRange(key string, offset int64, value []byte) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine3("SETRANGE",
		[]byte(key), []byte(strconv.FormatInt(offset, 10)), value))
}

// Append 在值末尾追加，返回新长度
func (c *Conn) Append(key string, value []byte) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine3("APPEND", []byte(key), value))
}

// StrLen 返回值的字节长度
func (c *Conn) StrLen(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("STRLEN", key))
}

// Incr 自增1
func (c *Conn) Incr(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("INCR", key))
}

// IncrBy 按步长自增
func (c *Conn) IncrBy(key string, delta int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("INCRBY", key, strconv.FormatInt(delta, 10)))
}

// IncrByFloat 按浮点步长自增
func (c *Conn) IncrByFloat(key string, delta float64) (float64, error) {
	return c.floatResult([]string{key}, utils.ToCmdLine("INCRBYFLOAT", key,
		strconv.FormatFloat(delta, 'f', -1, 64)))
}

// Decr 自减1
func (c *Conn) Decr(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("DECR", key))
}

// DecrBy 按步长自减
func (c *Conn) DecrBy(key string, delta int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("DECRBY", key, strconv.FormatInt(delta, 10)))
}

// MGet 批量读取，结果与输入键一一对应，缺失的键对应nil
// 键可以跨slot，底层按节点分组执行后按原始键序拼回
func (c *Conn) MGet(keys ...string) ([][]byte, error) {
	return c.listResult(keys, utils.ToCmdLine2("MGET", keys...))
}

// MSet 批量写入，集群下所有键必须同slot
func (c *Conn) MSet(pairs map[string][]byte) (bool, error) {
	keys := make([]string, 0, len(pairs))
	args := make([][]byte, 0, len(pairs)*2)
	for key, value := range pairs {
		keys = append(keys, key)
		args = append(args, []byte(key), value)
	}
	return c.boolResult(keys, shapeOK, utils.ToCmdLine3("MSET", args...))
}

// MSetNX 批量写入，任一键已存在时整体放弃
func (c *Conn) MSetNX(pairs map[string][]byte) (bool, error) {
	keys := make([]string, 0, len(pairs))
	args := make([][]byte, 0, len(pairs)*2)
	for key, value := range pairs {
		keys = append(keys, key)
		args = append(args, []byte(key), value)
	}
	return c.boolResult(keys, shapeBool, utils.ToCmdLine3("MSETNX", args...))
}
