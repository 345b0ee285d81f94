package driver

import (
	"github.com/iverson3/xvalkey/lib/utils"
)

// HyperLogLog命令

// PFAdd 添加元素，基数估计发生变化时返回true
func (c *Conn) PFAdd(key string, elements ...string) (bool, error) {
	args := append([]string{key}, elements...)
	return c.boolResult([]string{key}, shapeBool, utils.ToCmdLine2("PFADD", args...))
}

// PFCount 返回基数估计，集群下多个键必须同slot
func (c *Conn) PFCount(keys ...string) (int64, error) {
	return c.intResult(keys, utils.ToCmdLine2("PFCOUNT", keys...))
}

// PFMerge 合并多个HyperLogLog到目标键
func (c *Conn) PFMerge(dst string, srcKeys ...string) (bool, error) {
	all := append([]string{dst}, srcKeys...)
	return c.boolResult(all, shapeOK, utils.ToCmdLine2("PFMERGE", all...))
}
