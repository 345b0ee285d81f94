package cluster

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/lib/hashslot"
	"github.com/iverson3/xvalkey/lib/logger"
	"github.com/iverson3/xvalkey/lib/utils"
	"github.com/iverson3/xvalkey/redis/client"
	"github.com/iverson3/xvalkey/redis/protocol"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Node 一个主节点及其副本地址
type Node struct {
	Addr     string
	Replicas []string
}

// SlotRange 一段连续的slot及其归属的主节点
type SlotRange struct {
	Start   uint32
	End     uint32
	Primary string
}

// Topology 集群拓扑的不可变快照
// 刷新时整体替换，创建后不再修改，因此可以被任意多的协程无锁读取
type Topology struct {
	ranges []SlotRange      // 按Start升序
	nodes  map[string]*Node // 主节点地址 -> 节点
	addrs  []string         // 排序后的主节点地址
}

func newTopology(ranges []SlotRange, replicas map[string][]string) (*Topology, error) {
	if len(ranges) == 0 {
		return nil, errors.New("topology has no slot ranges")
	}
	sorted := make([]SlotRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	// slot表必须无缝覆盖[0, 16383]
	var next uint32
	for _, r := range sorted {
		if r.Start != next {
			return nil, fmt.Errorf("slot table broken at slot %d", next)
		}
		if r.End < r.Start || r.End >= hashslot.SlotCount {
			return nil, fmt.Errorf("invalid slot range %d-%d", r.Start, r.End)
		}
		next = r.End + 1
	}
	if next != hashslot.SlotCount {
		return nil, fmt.Errorf("slot table broken at slot %d", next)
	}

	nodes := make(map[string]*Node)
	for _, r := range sorted {
		if _, ok := nodes[r.Primary]; !ok {
			nodes[r.Primary] = &Node{
				Addr:     r.Primary,
				Replicas: replicas[r.Primary],
			}
		}
	}
	addrs := make([]string, 0, len(nodes))
	for addr := range nodes {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	return &Topology{
		ranges: sorted,
		nodes:  nodes,
		addrs:  addrs,
	}, nil
}

// NodeBySlot 返回持有指定slot的主节点地址
func (t *Topology) NodeBySlot(slot uint32) string {
	i := sort.Search(len(t.ranges), func(i int) bool {
		return t.ranges[i].End >= slot
	})
	return t.ranges[i].Primary
}

// NodeByKey 返回持有指定键的主节点地址
func (t *Topology) NodeByKey(key string) string {
	return t.NodeBySlot(hashslot.Slot(key))
}

// HasNode 判断地址是否为当前拓扑中的主节点
func (t *Topology) HasNode(addr string) bool {
	_, ok := t.nodes[addr]
	return ok
}

// Node 按地址取主节点信息
func (t *Topology) Node(addr string) (*Node, bool) {
	n, ok := t.nodes[addr]
	return n, ok
}

// Addrs 返回排序后的主节点地址列表
func (t *Topology) Addrs() []string {
	out := make([]string, len(t.addrs))
	copy(out, t.addrs)
	return out
}

// Ranges 返回slot区间表
func (t *Topology) Ranges() []SlotRange {
	out := make([]SlotRange, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// AnyAddr 返回任意一个主节点地址，用于无键命令
func (t *Topology) AnyAddr() string {
	return t.addrs[rand.Intn(len(t.addrs))]
}

// fetchFunc 向指定节点询问CLUSTER SLOTS，可注入用于测试
type fetchFunc func(addr string) (redis.Reply, error)

// Provider 持有拓扑快照并按TTL惰性刷新
// 整个进程内的多条逻辑连接共享同一个Provider
type Provider struct {
	seeds     []string
	timeout   time.Duration
	fetchImpl fetchFunc

	mu        sync.RWMutex
	current   *Topology
	fetchedAt *atomic.Int64 // 快照时间，unix毫秒；0表示强制下一次刷新

	logger *zap.Logger
}

// NewProvider 构建拓扑Provider，seeds为初始联络节点
func NewProvider(seeds []string, timeout time.Duration) *Provider {
	return &Provider{
		seeds:     seeds,
		timeout:   timeout,
		fetchImpl: fetchClusterSlots,
		fetchedAt: atomic.NewInt64(0),
		logger:    logger.Named("topology"),
	}
}

// Get 返回当前拓扑
// 快照在有效期内直接复用；过期则同步刷新；刷新失败但存在旧快照时回退到旧快照
func (p *Provider) Get() (*Topology, error) {
	if ts := p.fetchedAt.Load(); ts > 0 {
		if time.Since(time.UnixMilli(ts)) <= p.timeout {
			if topo := p.snapshot(); topo != nil {
				return topo, nil
			}
		}
	}

	topo, err := p.Refresh()
	if err != nil {
		if old := p.snapshot(); old != nil {
			p.logger.Warn("topology refresh failed, using stale snapshot", zap.Error(err))
			return old, nil
		}
		return nil, err
	}
	return topo, nil
}

// Refresh 向集群询问slot归属并整体替换快照
// 并发调用是安全的：快照不可变，重复刷新按后写者覆盖
func (p *Provider) Refresh() (*Topology, error) {
	var lastErr error
	for _, addr := range p.candidates() {
		reply, err := p.fetchImpl(addr)
		if err != nil {
			lastErr = err
			continue
		}
		if errReply, ok := reply.(protocol.ErrorReply); ok {
			lastErr = errors.New(errReply.Error())
			continue
		}
		topo, err := parseClusterSlots(addr, reply)
		if err != nil {
			lastErr = err
			continue
		}

		p.mu.Lock()
		p.current = topo
		p.mu.Unlock()
		p.fetchedAt.Store(time.Now().UnixMilli())
		topologyRefreshes.Inc()
		p.logger.Info("topology refreshed",
			zap.String("via", addr), zap.Int("primaries", len(topo.addrs)))
		return topo, nil
	}

	topologyRefreshFailures.Inc()
	// 旧快照保留，等待下一次刷新成功后才被替换
	return nil, fmt.Errorf("%w: %v", store.ErrTopologyUnavailable, lastErr)
}

// Invalidate 将快照标记为失效，下一次Get会触发刷新
// 收到MOVED重定向后调用
func (p *Provider) Invalidate() {
	p.fetchedAt.Store(0)
}

func (p *Provider) snapshot() *Topology {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// candidates 刷新时的联络顺序：种子节点优先，然后是上一份快照中的主节点
func (p *Provider) candidates() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(p.seeds))
	for _, addr := range p.seeds {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	if topo := p.snapshot(); topo != nil {
		for _, addr := range topo.addrs {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

// fetchClusterSlots 用一条短连接询问CLUSTER SLOTS
func fetchClusterSlots(addr string) (redis.Reply, error) {
	c, err := client.MakeClient(addr)
	if err != nil {
		return nil, err
	}
	c.Start()
	defer c.Close()
	return c.Send(utils.ToCmdLine("CLUSTER", "SLOTS")), nil
}

// parseClusterSlots 解析CLUSTER SLOTS的嵌套结果
// 每个条目形如 [start, end, [host, port, ...], [host, port, ...]...]
// 第一个地址是主节点，其余是副本；空host表示被询问的节点自身
func parseClusterSlots(self string, reply redis.Reply) (*Topology, error) {
	raw, ok := reply.(*protocol.MultiRawReply)
	if !ok {
		return nil, fmt.Errorf("unexpected CLUSTER SLOTS reply: %s", string(reply.ToBytes()))
	}

	ranges := make([]SlotRange, 0, len(raw.Replies))
	replicas := make(map[string][]string)
	for _, entry := range raw.Replies {
		fields, ok := entry.(*protocol.MultiRawReply)
		if !ok || len(fields.Replies) < 3 {
			return nil, errors.New("malformed CLUSTER SLOTS entry")
		}
		start, ok1 := asInt(fields.Replies[0])
		end, ok2 := asInt(fields.Replies[1])
		if !ok1 || !ok2 || start < 0 || end < start {
			return nil, errors.New("malformed CLUSTER SLOTS slot range")
		}

		primary, err := parseSlotNode(self, fields.Replies[2])
		if err != nil {
			return nil, err
		}
		for _, rep := range fields.Replies[3:] {
			addr, err := parseSlotNode(self, rep)
			if err != nil {
				return nil, err
			}
			replicas[primary] = append(replicas[primary], addr)
		}
		ranges = append(ranges, SlotRange{
			Start:   uint32(start),
			End:     uint32(end),
			Primary: primary,
		})
	}
	return newTopology(ranges, replicas)
}

func parseSlotNode(self string, reply redis.Reply) (string, error) {
	fields, ok := reply.(*protocol.MultiRawReply)
	if !ok || len(fields.Replies) < 2 {
		return "", errors.New("malformed CLUSTER SLOTS node entry")
	}
	host, ok1 := asBulkString(fields.Replies[0])
	port, ok2 := asInt(fields.Replies[1])
	if !ok1 || !ok2 {
		return "", errors.New("malformed CLUSTER SLOTS node entry")
	}
	if host == "" {
		// 节点不知道自己的对外地址，用被询问的地址代替
		return self, nil
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

func asInt(reply redis.Reply) (int64, bool) {
	r, ok := reply.(*protocol.IntReply)
	if !ok {
		return 0, false
	}
	return r.Code, true
}

func asBulkString(reply redis.Reply) (string, bool) {
	switch r := reply.(type) {
	case *protocol.BulkReply:
		return string(r.Arg), true
	case *protocol.NullBulkReply:
		return "", true
	default:
		return "", false
	}
}
