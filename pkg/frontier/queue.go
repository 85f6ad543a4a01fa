package frontier

import (
	"container/heap"
	"sort"

	"github.com/dtnitsch/seo-pipeline/models"
)

// item is a queued target with its precomputed ordering keys.
type item struct {
	target   models.CrawlTarget
	segments int
	followed bool
	seq      int
}

// less orders shallow targets first, then short paths, then targets matching
// a follow pattern, then discovery order.
func less(a, b item) bool {
	if a.target.Depth != b.target.Depth {
		return a.target.Depth < b.target.Depth
	}
	if a.segments != b.segments {
		return a.segments < b.segments
	}
	if a.followed != b.followed {
		return a.followed
	}
	return a.seq < b.seq
}

// Prioritize returns targets in fetch order. The input is not modified.
func Prioritize(targets []models.CrawlTarget) []models.CrawlTarget {
	items := make([]item, len(targets))
	for i, t := range targets {
		items[i] = item{target: t, segments: PathSegments(t.URL), seq: i}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })

	out := make([]models.CrawlTarget, len(items))
	for i, it := range items {
		out[i] = it.target
	}
	return out
}

type itemHeap []item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is the frontier of one crawl. It is not safe for concurrent use;
// the crawler owns it for the crawl's lifetime.
type Queue struct {
	items  itemHeap
	seq    int
	filter *Filter
}

// NewQueue returns an empty frontier. The filter, when set, supplies follow
// patterns that raise a target's priority.
func NewQueue(filter *Filter) *Queue {
	return &Queue{filter: filter}
}

// Push adds a target.
func (q *Queue) Push(t models.CrawlTarget) {
	it := item{target: t, segments: PathSegments(t.URL), seq: q.seq}
	if q.filter != nil {
		it.followed = q.filter.Followed(t.URL)
	}
	q.seq++
	heap.Push(&q.items, it)
}

// Pop removes and returns the highest-priority target.
func (q *Queue) Pop() (models.CrawlTarget, bool) {
	if len(q.items) == 0 {
		return models.CrawlTarget{}, false
	}
	it := heap.Pop(&q.items).(item)
	return it.target, true
}

// Len returns the number of queued targets.
func (q *Queue) Len() int {
	return len(q.items)
}
