package chimera

import (
	"testing"

	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestChunkError(t *testing.T) {
	expect.NoError(t, chunkError("TX1", 0, 10, index.ErrNoReference))
	err := chunkError("TX1", 0, 10, index.ErrInvalid)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "invalid interval")
	expect.False(t, IsRecoverable(err))
}

func TestBAMFetcherWindow(t *testing.T) {
	tx1, err := sam.NewReference("TX1", "", "", 250, nil, nil)
	require.NoError(t, err)
	f := &BAMFetcher{refs: map[string]*sam.Reference{"TX1": tx1}}

	for _, w := range [][2]int{{-1, 10}, {300, 250}, {200, 260}, {100, 50}} {
		_, err := f.Fetch("TX1", w[0], w[1])
		_, ok := err.(*CoordinateOutOfRangeError)
		expect.True(t, ok, "%v: %v", w, err)
	}
	recs, err := f.Fetch("TX1", 250, 250)
	expect.NoError(t, err)
	expect.EQ(t, len(recs), 0)

	_, err = f.Fetch("TX9", 0, 10)
	_, ok := err.(*ReferenceLookupError)
	expect.True(t, ok, "err: %v", err)
}

func TestFilterBreakpointPastReference(t *testing.T) {
	tx1, err := sam.NewReference("TX1", "", "", 250, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{tx1})
	require.NoError(t, err)
	fetcher := NewSliceFetcher(h, []*sam.Record{newRecord("w1", tx1, 50, 40)})

	opts := DefaultOpts
	opts.MedianInsertSize = 50
	f, stats := testFilter(t, opts, nil, fetcher)
	_, err = f.Check(newCandidate("TX1", 400, "TX3", 0))
	e, ok := err.(*CoordinateOutOfRangeError)
	assert.True(t, ok, "err: %v", err)
	expect.EQ(t, e.Length, 250)
	expect.NoError(t, stats.recordDrop("TX1:400-TX3:0", err))
	expect.EQ(t, stats.CoordinateErrors, 1)
}

func TestCountWildTypeFragmentsByName(t *testing.T) {
	tx1, err := sam.NewReference("TX1", "", "", 250, nil, nil)
	require.NoError(t, err)
	recs := []*sam.Record{
		newRecord("r1", tx1, 50, 40),   // [50,90)
		newRecord("r1/1", tx1, 80, 10), // [80,90): a different fragment.
		newRecord("r1", tx1, 110, 40),  // joins r1 into [50,150)
		newRecord("r2", tx1, 120, 40),
	}
	expect.EQ(t, countWildTypeFragments(recs, 100), 1)
	expect.EQ(t, countWildTypeFragments(recs, 85), 2)
	expect.EQ(t, countWildTypeFragments(nil, 100), 0)
}
