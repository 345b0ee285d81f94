package cluster

import (
	"strconv"
	"strings"
)

// routePolicy 决定一条命令在集群中的落点
type routePolicy int

const (
	// policyKeyless 无键命令，发给任意主节点
	policyKeyless routePolicy = iota
	// policySingleSlot 命令的所有键必须落在同一个slot，发给该slot的主节点
	policySingleSlot
	// policyAggregate 键可以跨slot：按节点分组执行，再把部分结果合并
	policyAggregate
	// policyBroadcast 整集群命令：发给所有主节点并合并
	policyBroadcast
)

// keysFunc 从命令行里提取键
type keysFunc func(cmdLine CmdLine) []string

// aggKind 跨slot聚合命令的合并方式
type aggKind int

const (
	// aggPositional 各节点按自己键的顺序返回数组，按原始键位拼回（MGET）
	aggPositional aggKind = iota
	// aggSum 各节点返回整数，求和（DEL/EXISTS/UNLINK）
	aggSum
)

type command struct {
	name   string
	policy routePolicy
	keys   keysFunc
	agg    aggKind
	merge  broadcastMerge
}

var cmdTable = make(map[string]*command)

func registerCommand(name string, keys keysFunc) {
	cmdTable[strings.ToLower(name)] = &command{
		name:   strings.ToLower(name),
		policy: policySingleSlot,
		keys:   keys,
	}
}

func registerKeyless(name string) {
	cmdTable[strings.ToLower(name)] = &command{
		name:   strings.ToLower(name),
		policy: policyKeyless,
		keys:   noKeys,
	}
}

func registerAggregate(name string, keys keysFunc, kind aggKind) {
	cmdTable[strings.ToLower(name)] = &command{
		name:   strings.ToLower(name),
		policy: policyAggregate,
		keys:   keys,
		agg:    kind,
	}
}

func registerBroadcast(name string, merge broadcastMerge) {
	cmdTable[strings.ToLower(name)] = &command{
		name:   strings.ToLower(name),
		policy: policyBroadcast,
		keys:   noKeys,
		merge:  merge,
	}
}

// 键提取器，对应各命令家族的键位形态

func noKeys(cmdLine CmdLine) []string {
	return nil
}

// firstKey 键在第一个参数位: GET key / HSET key field value
func firstKey(cmdLine CmdLine) []string {
	if len(cmdLine) < 2 {
		return nil
	}
	return []string{string(cmdLine[1])}
}

// allKeys 第一个参数之后全是键: DEL k1 k2 / SDIFF k1 k2
func allKeys(cmdLine CmdLine) []string {
	keys := make([]string, 0, len(cmdLine)-1)
	for _, arg := range cmdLine[1:] {
		keys = append(keys, string(arg))
	}
	return keys
}

// firstTwoKeys 前两个参数是键: RENAME src dst / SMOVE src dst member
func firstTwoKeys(cmdLine CmdLine) []string {
	if len(cmdLine) < 3 {
		return firstKey(cmdLine)
	}
	return []string{string(cmdLine[1]), string(cmdLine[2])}
}

// keysFromSecond 键从第二个参数开始: BITOP op destkey srckey...
func keysFromSecond(cmdLine CmdLine) []string {
	if len(cmdLine) < 3 {
		return nil
	}
	keys := make([]string, 0, len(cmdLine)-2)
	for _, arg := range cmdLine[2:] {
		keys = append(keys, string(arg))
	}
	return keys
}

// stepTwoKeys 键值交替出现: MSET k1 v1 k2 v2
func stepTwoKeys(cmdLine CmdLine) []string {
	keys := make([]string, 0, (len(cmdLine)-1)/2)
	for i := 1; i < len(cmdLine); i += 2 {
		keys = append(keys, string(cmdLine[i]))
	}
	return keys
}

// numKeys 第一个参数声明键的个数: ZDIFF numkeys key...
func numKeys(cmdLine CmdLine) []string {
	if len(cmdLine) < 3 {
		return nil
	}
	n, err := strconv.Atoi(string(cmdLine[1]))
	if err != nil || n <= 0 || len(cmdLine) < 2+n {
		return nil
	}
	keys := make([]string, 0, n)
	for _, arg := range cmdLine[2 : 2+n] {
		keys = append(keys, string(arg))
	}
	return keys
}

// destNumKeys 目标键+键个数: ZUNIONSTORE dest numkeys key...
func destNumKeys(cmdLine CmdLine) []string {
	if len(cmdLine) < 4 {
		return nil
	}
	n, err := strconv.Atoi(string(cmdLine[2]))
	if err != nil || n <= 0 || len(cmdLine) < 3+n {
		return nil
	}
	keys := make([]string, 0, n+1)
	keys = append(keys, string(cmdLine[1]))
	for _, arg := range cmdLine[3 : 3+n] {
		keys = append(keys, string(arg))
	}
	return keys
}

func init() {
	// 无键命令
	registerKeyless("ping")
	registerKeyless("echo")

	// 单键命令：键在第一个参数位
	singleKeyCommands := []string{
		// keys
		"type", "expire", "pexpire", "expireat", "pexpireat",
		"ttl", "pttl", "persist",
		// strings
		"get", "set", "setnx", "setex", "psetex", "getset", "getdel",
		"getrange", "setrange", "append", "strlen",
		"incr", "incrby", "incrbyfloat", "decr", "decrby",
		// bit
		"getbit", "setbit", "bitcount", "bitpos",
		// hashes
		"hset", "hsetnx", "hget", "hmget", "hgetall", "hdel", "hexists",
		"hlen", "hkeys", "hvals", "hincrby", "hincrbyfloat",
		// sets
		"sadd", "srem", "scard", "sismember", "smembers", "spop", "srandmember",
		// lists
		"lpush", "rpush", "lpushx", "rpushx", "lpop", "rpop", "llen",
		"lrange", "lindex", "lset", "lrem", "ltrim",
		// sorted sets
		"zadd", "zscore", "zincrby", "zrem", "zcard", "zcount",
		"zrange", "zrevrange", "zrangebyscore", "zrevrangebyscore",
		"zrank", "zrevrank", "zremrangebyrank", "zremrangebyscore",
		// hyperloglog
		"pfadd",
		// streams
		"xadd", "xlen", "xrange", "xrevrange", "xdel",
		// geo
		"geoadd", "geodist", "geopos", "geohash", "geosearch",
	}
	for _, name := range singleKeyCommands {
		registerCommand(name, firstKey)
	}

	// 多键同slot命令：slot不一致时整条拒绝，这是存储侧的正确性约束
	registerCommand("mset", stepTwoKeys)
	registerCommand("msetnx", stepTwoKeys)
	registerCommand("rename", firstTwoKeys)
	registerCommand("renamenx", firstTwoKeys)
	registerCommand("smove", firstTwoKeys)
	registerCommand("sdiff", allKeys)
	registerCommand("sinter", allKeys)
	registerCommand("sunion", allKeys)
	registerCommand("sdiffstore", allKeys)
	registerCommand("sinterstore", allKeys)
	registerCommand("sunionstore", allKeys)
	registerCommand("bitop", keysFromSecond)
	registerCommand("pfcount", allKeys)
	registerCommand("pfmerge", allKeys)
	registerCommand("zdiff", numKeys)
	registerCommand("zinter", numKeys)
	registerCommand("zunion", numKeys)
	registerCommand("zdiffstore", destNumKeys)
	registerCommand("zinterstore", destNumKeys)
	registerCommand("zunionstore", destNumKeys)
	registerCommand("watch", allKeys)

	// 跨slot聚合命令：按节点分组执行，按原始键序合并
	registerAggregate("mget", allKeys, aggPositional)
	registerAggregate("del", allKeys, aggSum)
	registerAggregate("unlink", allKeys, aggSum)
	registerAggregate("exists", allKeys, aggSum)

	// 整集群命令：广播到所有主节点
	registerBroadcast("keys", mergeUnion)
	registerBroadcast("dbsize", mergeSum)
	registerBroadcast("flushdb", mergeAllOK)
	registerBroadcast("flushall", mergeAllOK)
	registerBroadcast("info", mergeByNode)
	registerBroadcast("config", mergeConfig)
}
