package vector

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
)

// HNSWParams tunes the hierarchical navigable small world graph.
type HNSWParams struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	// ExactThreshold is the live-entry count below which queries scan every node.
	ExactThreshold int
	Seed           int64
}

func (p HNSWParams) withDefaults() HNSWParams {
	if p.M < 2 {
		p.M = 16
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = 200
	}
	if p.EfSearch <= 0 {
		p.EfSearch = 64
	}
	if p.ExactThreshold < 0 {
		p.ExactThreshold = 0
	}
	if p.Seed == 0 {
		p.Seed = 1
	}
	return p
}

const maxLevel = 16

type hnswNode struct {
	id      uint32
	key     string
	vec     []float32
	level   int
	meta    atomic.Pointer[Metadata]
	deleted atomic.Bool

	mu      sync.RWMutex
	friends [][]uint32
}

func (n *hnswNode) neighbors(level int) []uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if level >= len(n.friends) {
		return nil
	}
	out := make([]uint32, len(n.friends[level]))
	copy(out, n.friends[level])
	return out
}

func (n *hnswNode) metadata() Metadata {
	if m := n.meta.Load(); m != nil {
		return *m
	}
	return nil
}

// hnswGraph is safe for concurrent inserts and searches: every node guards its own
// adjacency lists and the entry point has its own lock. Deletion only marks nodes; they
// keep routing searches until the graph is rebuilt.
type hnswGraph struct {
	params    HNSWParams
	levelMult float64

	nodes  sync.Map // uint32 -> *hnswNode
	nextID atomic.Uint32
	total  atomic.Int64
	live   atomic.Int64

	epMu     sync.RWMutex
	entry    *hnswNode
	topLevel int

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newHNSWGraph(params HNSWParams) *hnswGraph {
	params = params.withDefaults()
	return &hnswGraph{
		params:    params,
		levelMult: 1 / math.Log(float64(params.M)),
		rng:       rand.New(rand.NewSource(params.Seed)),
	}
}

func (g *hnswGraph) node(id uint32) *hnswNode {
	v, ok := g.nodes.Load(id)
	if !ok {
		return nil
	}
	return v.(*hnswNode)
}

func (g *hnswGraph) maxConn(level int) int {
	if level == 0 {
		return 2 * g.params.M
	}
	return g.params.M
}

func (g *hnswGraph) randomLevel() int {
	g.rngMu.Lock()
	r := g.rng.Float64()
	g.rngMu.Unlock()
	level := int(math.Floor(-math.Log(1-r) * g.levelMult))
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

func (g *hnswGraph) entryPoint() (*hnswNode, int) {
	g.epMu.RLock()
	defer g.epMu.RUnlock()
	return g.entry, g.topLevel
}

// insert adds a unit vector under key and links it into every layer up to its level.
func (g *hnswGraph) insert(key string, vec []float32, meta Metadata) *hnswNode {
	level := g.randomLevel()
	n := &hnswNode{
		id:      g.nextID.Add(1) - 1,
		key:     key,
		vec:     vec,
		level:   level,
		friends: make([][]uint32, level+1),
	}
	n.meta.Store(&meta)
	g.nodes.Store(n.id, n)
	g.total.Add(1)
	g.live.Add(1)

	g.epMu.Lock()
	if g.entry == nil {
		g.entry, g.topLevel = n, level
		g.epMu.Unlock()
		return n
	}
	ep, top := g.entry, g.topLevel
	g.epMu.Unlock()

	cur := candidate{node: ep, sim: dot(vec, ep.vec)}
	for l := top; l > level; l-- {
		cur = g.greedy(vec, cur, l)
	}
	for l := min(level, top); l >= 0; l-- {
		found := g.searchLayer(vec, cur, g.params.EfConstruction, l)
		selected := g.selectNeighbors(n, found, g.maxConn(l))
		ids := make([]uint32, len(selected))
		for i, c := range selected {
			ids[i] = c.node.id
		}
		// append: a concurrent insert may already have linked itself to n on this layer
		n.mu.Lock()
		n.friends[l] = append(n.friends[l], ids...)
		n.mu.Unlock()
		for _, c := range selected {
			g.link(c.node, n, l)
		}
		if len(found) > 0 {
			cur = found[0]
		}
	}

	if level > top {
		g.epMu.Lock()
		if level > g.topLevel {
			g.entry, g.topLevel = n, level
		}
		g.epMu.Unlock()
	}
	return n
}

// selectNeighbors keeps the closest live candidates; deleted ones are used only when
// nothing else is reachable.
func (g *hnswGraph) selectNeighbors(self *hnswNode, found []candidate, m int) []candidate {
	out := make([]candidate, 0, m)
	for _, c := range found {
		if len(out) == m {
			break
		}
		if c.node != self && !c.node.deleted.Load() {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, c := range found {
		if len(out) == m {
			break
		}
		if c.node != self {
			out = append(out, c)
		}
	}
	return out
}

// link adds a back edge from nb to n, shrinking nb's list to its closest peers on overflow.
func (g *hnswGraph) link(nb, n *hnswNode, level int) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if level >= len(nb.friends) {
		return
	}
	nb.friends[level] = append(nb.friends[level], n.id)
	limit := g.maxConn(level)
	if len(nb.friends[level]) <= limit {
		return
	}
	peers := make([]candidate, 0, len(nb.friends[level]))
	for _, id := range nb.friends[level] {
		if p := g.node(id); p != nil {
			peers = append(peers, candidate{node: p, sim: dot(nb.vec, p.vec)})
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].sim > peers[j].sim })
	if len(peers) > limit {
		peers = peers[:limit]
	}
	kept := make([]uint32, len(peers))
	for i, p := range peers {
		kept[i] = p.node.id
	}
	nb.friends[level] = kept
}

func (g *hnswGraph) greedy(q []float32, cur candidate, level int) candidate {
	for {
		improved := false
		for _, id := range cur.node.neighbors(level) {
			nb := g.node(id)
			if nb == nil {
				continue
			}
			if s := dot(q, nb.vec); s > cur.sim {
				cur = candidate{node: nb, sim: s}
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer is the beam search of one layer; results are ordered best first.
func (g *hnswGraph) searchLayer(q []float32, ep candidate, ef int, level int) []candidate {
	visited := map[uint32]struct{}{ep.node.id: {}}
	candidates := &maxHeap{ep}
	results := &minHeap{ep}
	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && c.sim < (*results)[0].sim {
			break
		}
		for _, id := range c.node.neighbors(level) {
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			nb := g.node(id)
			if nb == nil {
				continue
			}
			s := dot(q, nb.vec)
			if results.Len() < ef || s > (*results)[0].sim {
				next := candidate{node: nb, sim: s}
				heap.Push(candidates, next)
				heap.Push(results, next)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// search returns up to ef nodes closest to q, deleted ones included.
func (g *hnswGraph) search(q []float32, ef int) []candidate {
	ep, top := g.entryPoint()
	if ep == nil {
		return nil
	}
	cur := candidate{node: ep, sim: dot(q, ep.vec)}
	for l := top; l > 0; l-- {
		cur = g.greedy(q, cur, l)
	}
	return g.searchLayer(q, cur, ef, 0)
}

// scan visits every live node.
func (g *hnswGraph) scan(fn func(n *hnswNode)) {
	g.nodes.Range(func(_, v interface{}) bool {
		n := v.(*hnswNode)
		if !n.deleted.Load() {
			fn(n)
		}
		return true
	})
}

func (g *hnswGraph) markDeleted(n *hnswNode) {
	if n.deleted.CompareAndSwap(false, true) {
		g.live.Add(-1)
	}
}

type candidate struct {
	node *hnswNode
	sim  float32
}

type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].sim > h[j].sim }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].sim < h[j].sim }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
