package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 有序集合命令

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// ZAdd 添加成员，返回新增的个数
func (c *Conn) ZAdd(key string, members ...Z) (int64, error) {
	args := make([]string, 0, len(members)*2+1)
	args = append(args, key)
	for _, m := range members {
		args = append(args, formatScore(m.Score), m.Member)
	}
	return c.intResult([]string{key}, utils.ToCmdLine2("ZADD", args...))
}

// ZScore 返回成员的分值，成员不存在时返回Nil
func (c *Conn) ZScore(key, member string) (float64, error) {
	return c.floatResult([]string{key}, utils.ToCmdLine("ZSCORE", key, member))
}

// ZIncrBy 成员分值按步长自增，返回新分值
func (c *Conn) ZIncrBy(key string, delta float64, member string) (float64, error) {
	return c.floatResult([]string{key}, utils.ToCmdLine("ZINCRBY", key, formatScore(delta), member))
}

// ZRem 移除成员，返回实际移除的个数
func (c *Conn) ZRem(key string, members ...string) (int64, error) {
	args := append([]string{key}, members...)
	return c.intResult([]string{key}, utils.ToCmdLine2("ZREM", args...))
}

// ZCard 返回成员个数
func (c *Conn) ZCard(key string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZCARD", key))
}

// ZCount 返回分值区间内的成员个数
func (c *Conn) ZCount(key string, min, max string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZCOUNT", key, min, max))
}

// ZRange 按排名升序返回区间内的成员
func (c *Conn) ZRange(key string, start, stop int64) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("ZRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}

// ZRangeWithScores 按排名升序返回区间内的成员及分值
func (c *Conn) ZRangeWithScores(key string, start, stop int64) ([]Z, error) {
	v, err := c.dispatch([]string{key}, shapeZSlice, utils.ToCmdLine("ZRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10), "WITHSCORES"))
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]Z), nil
}

// ZRevRange 按排名降序返回区间内的成员
func (c *Conn) ZRevRange(key string, start, stop int64) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("ZREVRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}

// ZRangeByScore 按分值区间返回成员，min/max支持区间语法如"(1"和"+inf"
func (c *Conn) ZRangeByScore(key string, min, max string) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("ZRANGEBYSCORE", key, min, max))
}

// ZRevRangeByScore 按分值区间降序返回成员
func (c *Conn) ZRevRangeByScore(key string, max, min string) ([]string, error) {
	return c.stringListResult([]string{key}, utils.ToCmdLine("ZREVRANGEBYSCORE", key, max, min))
}

// ZRank 返回成员的升序排名，成员不存在时返回Nil
func (c *Conn) ZRank(key, member string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZRANK", key, member))
}

// ZRevRank 返回成员的降序排名
func (c *Conn) ZRevRank(key, member string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZREVRANK", key, member))
}

// ZRemRangeByRank 按排名区间移除成员
func (c *Conn) ZRemRangeByRank(key string, start, stop int64) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZREMRANGEBYRANK", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}

// ZRemRangeByScore 按分值区间移除成员
func (c *Conn) ZRemRangeByScore(key string, min, max string) (int64, error) {
	return c.intResult([]string{key}, utils.ToCmdLine("ZREMRANGEBYSCORE", key, min, max))
}

// ZDiff 返回差集成员，集群下所有键必须同slot
func (c *Conn) ZDiff(keys ...string) ([]string, error) {
	args := append([]string{strconv.Itoa(len(keys))}, keys...)
	return c.stringListResult(keys, utils.ToCmdLine2("ZDIFF", args...))
}

// ZInter 返回交集成员
func (c *Conn) ZInter(keys ...string) ([]string, error) {
	args := append([]string{strconv.Itoa(len(keys))}, keys...)
	return c.stringListResult(keys, utils.ToCmdLine2("ZINTER", args...))
}

// ZUnion 返回并集成员
func (c *Conn) ZUnion(keys ...string) ([]string, error) {
	args := append([]string{strconv.Itoa(len(keys))}, keys...)
	return c.stringListResult(keys, utils.ToCmdLine2("ZUNION", args...))
}

// ZUnionStore 计算并集并写入目标键，集群下所有键必须同slot
func (c *Conn) ZUnionStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	args := append([]string{dst, strconv.Itoa(len(keys))}, keys...)
	return c.intResult(all, utils.ToCmdLine2("ZUNIONSTORE", args...))
}

// ZInterStore 计算交集并写入目标键
func (c *Conn) ZInterStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	args := append([]string{dst, strconv.Itoa(len(keys))}, keys...)
	return c.intResult(all, utils.ToCmdLine2("ZINTERSTORE", args...))
}

// ZDiffStore 计算差集并写入目标键
func (c *Conn) ZDiffStore(dst string, keys ...string) (int64, error) {
	all := append([]string{dst}, keys...)
	args := append([]string{dst, strconv.Itoa(len(keys))}, keys...)
	return c.intResult(all, utils.ToCmdLine2("ZDIFFSTORE", args...))
}
