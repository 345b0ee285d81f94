package driver

import (
	"github.com/iverson3/xvalkey/lib/utils"
)

// 流命令

// XAdd 追加一个条目，id传"*"表示由节点生成，返回实际的条目ID
func (c *Conn) XAdd(key, id string, fields map[string]string) (string, error) {
	args := make([]string, 0, len(fields)*2+2)
	args = append(args, key, id)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return c.stringResult([]string{key}, shapeString, utils.ToCmdLine2("XADD", args...))
}

// XLen 返回流的条目数
func (c *Conn) XLen(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("XLEN", key))
}

// XRange 按ID升序返回区间内的条目，start/end支持"-"和"+"
func (c *Conn) XRange(key, start, end string) ([]XEntry, error) {
	v, err := c.dispatch([]string{key}, shapeXEntries, utils.ToCmdLine("XRANGE", key, start, end))
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]XEntry), nil
}

// XRevRange 按ID降序返回区间内的条目
func (c *Conn) XRevRange(key, end, start string) ([]XEntry, error) {
	v, err := c.dispatch([]string{key}, shapeXEntries, utils.ToCmdLine("XREVRANGE", key, end, start))
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]XEntry), nil
}

// XDel 删除指定ID的条目，返回实际删除的个数
func (c *Conn) XDel(key string, ids ...string) (int64, error) {
	args := append([]string{key}, ids...)
	return c.intResult([]string{key}, utils.ToCmdLine2("XDEL", args...))
}
