package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 列表命令

// LPush 从左端压入，返回新长度
func (c *Conn) LPush(key string, values ...[]byte) (int64, error) {
	args := append([][]byte{[]byte(key)}, values...)
	return c.intResult([]string{key}, utils.ToCmdLine3("LPUSH", args...))
}

// RPush 从右端压入，返回新长度
func (c *Conn) RPush(key string, values ...[]byte) (int64, error) {
	args := append([][]byte{[]byte(key)}, values...)
	return c.intResult([]string{key}, utils.ToCmdLine3("RPUSH", args...))
}

// LPushX 仅当列表已存在时从左端压入
func (c *Conn) LPushX(key string, value []byte) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine3("LPUSHX", []byte(key), value))
}

// RPushX 仅当列表已存在时从右端压入
func (c *Conn) RPushX(key string, value []byte) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine3("RPUSHX", []byte(key), value))
}

// LPop 从左端弹出，列表为空时返回Nil
func (c *Conn) LPop(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("LPOP", key))
}

// RPop 从右端弹出
func (c *Conn) RPop(key string) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("RPOP", key))
}

// LLen 返回列表长度
func (c *Conn) LLen(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("LLEN", key))
}

// LRange 返回区间内的元素，区间含两端
func (c *Conn) LRange(key string, start, stop int64) ([][]byte, error) {
	return c.listResult([]string{key}, utils.ToCmdLine("LRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}

// LIndex 返回指定下标的元素，越界返回Nil
func (c *Conn) LIndex(key string, index int64) ([]byte, error) {
	return c.bytesResult([]string{key}, utils.ToCmdLine("LINDEX", key,
		strconv.FormatInt(index, 10)))
}

// LSet 覆写指定下标的元素
func (c *Conn) LSet(key string, index int64, value []byte) (bool, error) {
	return c.boolResult([]string{key}, shapeOK, utils.ToCmdLine3("LSET",
		[]byte(key), []byte(strconv.FormatInt(index, 10)), value))
}

// LRem 移除等于value的元素，count控制方向和数量
func (c *Conn) LRem(key string, count int64, value []byte) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine3("LREM",
		[]byte(key), []byte(strconv.FormatInt(count, 10)), value))
}

// LTrim 裁剪列表到指定区间
func (c *Conn) LTrim(key string, start, stop int64) (bool, error) {
	return c.boolResult([]string{key}, shapeOK, utils.ToCmdLine("LTRIM", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}
