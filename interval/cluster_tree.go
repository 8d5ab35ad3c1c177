package interval

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"
)

// ClusterTree merges 1-D intervals into clusters. An interval joins every
// existing cluster whose span overlaps it or lies within MaxGap of it, and
// the merge is transitive: the set of clusters does not depend on the
// insertion order.
//
// Clusters are stored in a biogo interval tree, so each Insert costs
// O(log n + k), where k is the number of clusters absorbed by the new
// interval.
//
// Thread compatible.
type ClusterTree struct {
	maxGap int
	tree   interval.IntTree
	nextID uintptr
}

// Region is one cluster produced by ClusterTree. [Start, End) is the union of
// the member intervals. Labels is sorted in ascending order.
type Region struct {
	Start, End int
	Labels     []int
}

// cluster is the element type stored in the tree.
type cluster struct {
	id         uintptr
	start, end int
	labels     []int
}

func (c *cluster) ID() uintptr { return c.id }

func (c *cluster) Range() interval.IntRange { return interval.IntRange{Start: c.start, End: c.end} }

func (c *cluster) Overlap(b interval.IntRange) bool { return c.end > b.Start && c.start < b.End }

// gapQuery matches clusters within maxGap of [start, end). Adjacent
// intervals match even when the gap is zero.
type gapQuery struct {
	start, end int
}

func (q gapQuery) Overlap(b interval.IntRange) bool { return b.Start <= q.end && q.start <= b.End }

// NewClusterTree creates an empty tree. maxGap is the largest distance
// between two intervals that still merges them. It is usually zero.
func NewClusterTree(maxGap int) *ClusterTree {
	if maxGap < 0 {
		maxGap = 0
	}
	return &ClusterTree{maxGap: maxGap}
}

// Insert adds interval [start, end) with the given label.
func (t *ClusterTree) Insert(start, end int, label int) error {
	if end < start {
		return fmt.Errorf("interval: inverted range [%d,%d) for label %d", start, end, label)
	}
	merged := &cluster{start: start, end: end, labels: []int{label}}
	hits := t.tree.Get(gapQuery{start: start - t.maxGap, end: end + t.maxGap})
	for _, h := range hits {
		c := h.(*cluster)
		if err := t.tree.Delete(c, false); err != nil {
			return err
		}
		if c.start < merged.start {
			merged.start = c.start
		}
		if c.end > merged.end {
			merged.end = c.end
		}
		merged.labels = append(merged.labels, c.labels...)
	}
	t.nextID++
	merged.id = t.nextID
	return t.tree.Insert(merged, false)
}

// Len returns the number of clusters.
func (t *ClusterTree) Len() int { return t.tree.Len() }

// RegionScanner iterates over the clusters of a ClusterTree in ascending
// start order. It is a snapshot: inserts made after the scanner is created
// are not visible.
//
// Example:
//   s := tree.Regions()
//   for s.Scan() {
//     r := s.Region()
//     ...
//   }
type RegionScanner struct {
	regions []Region
	cur     int
}

// Regions returns a scanner over the current clusters.
func (t *ClusterTree) Regions() *RegionScanner {
	s := &RegionScanner{cur: -1}
	t.tree.Do(func(e interval.IntInterface) bool {
		c := e.(*cluster)
		labels := append([]int(nil), c.labels...)
		sort.Ints(labels)
		s.regions = append(s.regions, Region{Start: c.start, End: c.end, Labels: labels})
		return false
	})
	// The tree orders equal starts by insertion id; make the order depend on
	// the spans only.
	sort.SliceStable(s.regions, func(i, j int) bool {
		if s.regions[i].Start != s.regions[j].Start {
			return s.regions[i].Start < s.regions[j].Start
		}
		return s.regions[i].End < s.regions[j].End
	})
	return s
}

// Scan advances to the next region. It returns false at the end.
func (s *RegionScanner) Scan() bool {
	if s.cur+1 >= len(s.regions) {
		s.cur = len(s.regions)
		return false
	}
	s.cur++
	return true
}

// Region returns the current region. It must be called after Scan returns
// true.
func (s *RegionScanner) Region() Region { return s.regions[s.cur] }
