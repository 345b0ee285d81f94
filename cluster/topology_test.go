package cluster

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/interface/store"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// slotsEntry 构造CLUSTER SLOTS的一个条目
func slotsEntry(start, end int64, primary nodeSpec, replicas ...nodeSpec) redis.Reply {
	fields := []redis.Reply{
		protocol.MakeIntReply(start),
		protocol.MakeIntReply(end),
		primary.reply(),
	}
	for _, rep := range replicas {
		fields = append(fields, rep.reply())
	}
	return protocol.MakeMultiRawReply(fields)
}

type nodeSpec struct {
	host string
	port int64
}

func (n nodeSpec) reply() redis.Reply {
	return protocol.MakeMultiRawReply([]redis.Reply{
		protocol.MakeBulkReply([]byte(n.host)),
		protocol.MakeIntReply(n.port),
	})
}

func threeNodeSlotsReply() redis.Reply {
	return protocol.MakeMultiRawReply([]redis.Reply{
		slotsEntry(0, 5460, nodeSpec{"127.0.0.1", 7000}, nodeSpec{"127.0.0.1", 7100}),
		slotsEntry(5461, 10922, nodeSpec{"127.0.0.1", 7001}),
		slotsEntry(10923, 16383, nodeSpec{"127.0.0.1", 7002}),
	})
}

func TestParseClusterSlots(t *testing.T) {
	topo, err := parseClusterSlots("127.0.0.1:7000", threeNodeSlotsReply())
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}, topo.Addrs())
	assert.Equal(t, "127.0.0.1:7000", topo.NodeBySlot(0))
	assert.Equal(t, "127.0.0.1:7000", topo.NodeBySlot(5460))
	assert.Equal(t, "127.0.0.1:7001", topo.NodeBySlot(5461))
	assert.Equal(t, "127.0.0.1:7002", topo.NodeBySlot(16383))

	n, ok := topo.Node("127.0.0.1:7000")
	require.True(t, ok)
	assert.Equal(t, []string{"127.0.0.1:7100"}, n.Replicas)

	// foo -> slot 12182
	assert.Equal(t, "127.0.0.1:7002", topo.NodeByKey("foo"))
}

func TestParseClusterSlotsEmptyHost(t *testing.T) {
	reply := protocol.MakeMultiRawReply([]redis.Reply{
		slotsEntry(0, 16383, nodeSpec{"", 7000}),
	})
	topo, err := parseClusterSlots("10.0.0.9:7000", reply)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:7000", topo.NodeBySlot(100))
}

func TestTopologyRejectsSlotGap(t *testing.T) {
	reply := protocol.MakeMultiRawReply([]redis.Reply{
		slotsEntry(0, 5460, nodeSpec{"127.0.0.1", 7000}),
		// 5461-5999缺失
		slotsEntry(6000, 16383, nodeSpec{"127.0.0.1", 7001}),
	})
	_, err := parseClusterSlots("127.0.0.1:7000", reply)
	assert.Error(t, err)
}

func TestTopologyRejectsOverlap(t *testing.T) {
	reply := protocol.MakeMultiRawReply([]redis.Reply{
		slotsEntry(0, 8000, nodeSpec{"127.0.0.1", 7000}),
		slotsEntry(5461, 16383, nodeSpec{"127.0.0.1", 7001}),
	})
	_, err := parseClusterSlots("127.0.0.1:7000", reply)
	assert.Error(t, err)
}

func newTestProvider(timeout time.Duration, fetch fetchFunc) *Provider {
	p := NewProvider([]string{"127.0.0.1:7000"}, timeout)
	p.fetchImpl = fetch
	return p
}

func TestProviderReusesSnapshotWithinTTL(t *testing.T) {
	fetches := 0
	p := newTestProvider(time.Minute, func(addr string) (redis.Reply, error) {
		fetches++
		return threeNodeSlotsReply(), nil
	})

	first, err := p.Get()
	require.NoError(t, err)
	second, err := p.Get()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fetches)
}

func TestProviderRefreshesAfterTTL(t *testing.T) {
	fetches := 0
	p := newTestProvider(time.Nanosecond, func(addr string) (redis.Reply, error) {
		fetches++
		return threeNodeSlotsReply(), nil
	})

	first, err := p.Get()
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := p.Get()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, fetches)
}

func TestProviderInvalidateForcesRefresh(t *testing.T) {
	fetches := 0
	p := newTestProvider(time.Minute, func(addr string) (redis.Reply, error) {
		fetches++
		return threeNodeSlotsReply(), nil
	})

	_, err := p.Get()
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestProviderFallsBackToStaleSnapshot(t *testing.T) {
	fail := false
	p := newTestProvider(time.Nanosecond, func(addr string) (redis.Reply, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return threeNodeSlotsReply(), nil
	})

	first, err := p.Get()
	require.NoError(t, err)

	fail = true
	time.Sleep(time.Millisecond)
	second, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestProviderErrorWithoutSnapshot(t *testing.T) {
	p := newTestProvider(time.Minute, func(addr string) (redis.Reply, error) {
		return nil, errors.New("connection refused")
	})

	_, err := p.Get()
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTopologyUnavailable)
}

func TestProviderConcurrentAccess(t *testing.T) {
	fetches := atomic.NewInt32(0)
	p := newTestProvider(5*time.Millisecond, func(addr string) (redis.Reply, error) {
		fetches.Inc()
		// 放慢刷新，让读方与进行中的刷新重叠
		time.Sleep(2 * time.Millisecond)
		return threeNodeSlotsReply(), nil
	})

	_, err := p.Get()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if id == 0 && j%20 == 0 {
					p.Invalidate()
				}
				topo, err := p.Get()
				if !assert.NoError(t, err) {
					return
				}
				// 刷新进行中读到的也必须是完整快照
				assert.Len(t, topo.Addrs(), 3)
				assert.Equal(t, "127.0.0.1:7000", topo.NodeBySlot(0))
				assert.Equal(t, "127.0.0.1:7002", topo.NodeBySlot(16383))
			}
		}(i)
	}
	wg.Wait()

	// 失效和过期确实触发过重复刷新
	assert.GreaterOrEqual(t, fetches.Load(), int32(2))
}

func TestProviderCandidatesIncludeKnownNodes(t *testing.T) {
	asked := make([]string, 0)
	p := newTestProvider(time.Minute, func(addr string) (redis.Reply, error) {
		asked = append(asked, addr)
		return threeNodeSlotsReply(), nil
	})

	_, err := p.Get()
	require.NoError(t, err)
	// 种子只有7000，刷新成功后候选里应出现发现的节点
	assert.Contains(t, p.candidates(), "127.0.0.1:7001")
	assert.Contains(t, p.candidates(), "127.0.0.1:7002")
	assert.Equal(t, []string{"127.0.0.1:7000"}, asked)
}
