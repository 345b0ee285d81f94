package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 位图命令

// GetBit 读取指定偏移的位
func (c *Conn) GetBit(key string, offset int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("GETBIT", key, strconv.FormatInt(offset, 10)))
}

// SetBit 写入指定偏移的位，返回旧值
func (c *Conn) SetBit(key string, offset int64, value int) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("SETBIT", key,
		strconv.FormatInt(offset, 10), strconv.Itoa(value)))
}

// BitCount 统计置位的个数
func (c *Conn) BitCount(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("BITCOUNT", key))
}

// BitCountRange 统计指定字节区间内置位的个数
func (c *Conn) BitCountRange(key string, start, end int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("BITCOUNT", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(end, 10)))
}

// BitPos 返回第一个值为bit的位偏移
func (c *Conn) BitPos(key string, bit int) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("BITPOS", key, strconv.Itoa(bit)))
}

// BitOp 对多个源键做位运算并写入目标键，返回结果长度
// 集群下目标键和所有源键必须同slot
func (c *Conn) BitOp(op string, destKey string, srcKeys ...string) (int64, error) {
	keys := append([]string{destKey}, srcKeys...)
	args := append([]string{op, destKey}, srcKeys...)
	return c.intResult(keys, utils.ToCmdLine2("BITOP", args...))
}
