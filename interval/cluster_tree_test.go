package interval

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func regions(t *ClusterTree) []Region {
	var r []Region
	s := t.Regions()
	for s.Scan() {
		r = append(r, s.Region())
	}
	return r
}

func TestClusterTreeDisjoint(t *testing.T) {
	tree := NewClusterTree(0)
	in := [][2]int{{30, 40}, {0, 10}, {100, 120}, {50, 60}}
	for i, iv := range in {
		assert.NoError(t, tree.Insert(iv[0], iv[1], i))
	}
	expect.EQ(t, tree.Len(), len(in))
	expect.EQ(t, regions(tree), []Region{
		{Start: 0, End: 10, Labels: []int{1}},
		{Start: 30, End: 40, Labels: []int{0}},
		{Start: 50, End: 60, Labels: []int{3}},
		{Start: 100, End: 120, Labels: []int{2}},
	})
}

func TestClusterTreeOrderIndependent(t *testing.T) {
	type iv struct{ start, end, label int }
	ivs := []iv{{5, 10, 0}, {9, 14, 1}, {20, 25, 2}}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	want := []Region{
		{Start: 5, End: 14, Labels: []int{0, 1}},
		{Start: 20, End: 25, Labels: []int{2}},
	}
	for _, order := range orders {
		tree := NewClusterTree(0)
		for _, i := range order {
			assert.NoError(t, tree.Insert(ivs[i].start, ivs[i].end, ivs[i].label))
		}
		expect.EQ(t, regions(tree), want, "order %v", order)
	}
}

func TestClusterTreeTransitiveMerge(t *testing.T) {
	tree := NewClusterTree(0)
	assert.NoError(t, tree.Insert(0, 10, 0))
	assert.NoError(t, tree.Insert(20, 30, 1))
	assert.NoError(t, tree.Insert(40, 50, 2))
	expect.EQ(t, tree.Len(), 3)
	// Bridges all three clusters.
	assert.NoError(t, tree.Insert(8, 45, 3))
	expect.EQ(t, regions(tree), []Region{{Start: 0, End: 50, Labels: []int{0, 1, 2, 3}}})
}

func TestClusterTreeMaxGap(t *testing.T) {
	tree := NewClusterTree(5)
	assert.NoError(t, tree.Insert(0, 10, 0))
	assert.NoError(t, tree.Insert(15, 20, 1))
	assert.NoError(t, tree.Insert(26, 30, 2))
	expect.EQ(t, regions(tree), []Region{
		{Start: 0, End: 20, Labels: []int{0, 1}},
		{Start: 26, End: 30, Labels: []int{2}},
	})
}

func TestClusterTreeInvertedRange(t *testing.T) {
	tree := NewClusterTree(0)
	err := tree.Insert(10, 5, 0)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "inverted range")
	expect.EQ(t, tree.Len(), 0)
}

func TestClusterTreeEmpty(t *testing.T) {
	s := NewClusterTree(0).Regions()
	expect.False(t, s.Scan())
	expect.False(t, s.Scan())
}
