package chimera

import (
	"bytes"
	"math"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestNewAlignment(t *testing.T) {
	a, err := NewAlignment(newRecord("r1", chr1, 10, 20,
		newAux("XS", sam.ASCII('-')), newAux("XO", 1), newAux("NH", 3)))
	assert.NoError(t, err)
	expect.EQ(t, a.Strand, Reverse)
	expect.EQ(t, a.Orientation, ThreePrime)
	expect.EQ(t, a.NumHits, 3)
	expect.EQ(t, a.ClusterID, ClusterID(-1))

	a, err = NewAlignment(newDiscordant("r2", chr1, 10, 20, '+', "5p"))
	assert.NoError(t, err)
	expect.EQ(t, a.Strand, Forward)
	expect.EQ(t, a.Orientation, FivePrime)
	expect.EQ(t, a.NumHits, 1)

	_, err = NewAlignment(newRecord("r3", chr1, 10, 20, newAux("XO", "5p")))
	_, ok := err.(*MalformedRecordError)
	expect.True(t, ok, "err: %v", err)

	_, err = NewAlignment(newRecord("r4", nil, -1, 20, newAux("XS", "+"), newAux("XO", "3p")))
	_, ok = err.(*MalformedRecordError)
	expect.True(t, ok, "err: %v", err)
}

func TestSetCluster(t *testing.T) {
	a, err := NewAlignment(newDiscordant("r1", chr1, 10, 20, '+', "5p"))
	assert.NoError(t, err)
	assert.NoError(t, a.SetCluster(7))
	assert.NoError(t, a.SetCluster(300))
	expect.EQ(t, a.ClusterID, ClusterID(300))
	n := 0
	for _, aux := range a.Rec.AuxFields {
		if aux.Tag() == ClusterTag {
			n++
			v, ok := intValue(aux.Value())
			expect.True(t, ok)
			expect.EQ(t, v, 300)
		}
	}
	expect.EQ(t, n, 1)
}

func scanLoci(t *testing.T, recs []*sam.Record) ([][]string, error) {
	s := NewLocusScanner(NewSliceReader(recs), "test")
	var loci [][]string
	for s.Scan() {
		var names []string
		for _, a := range s.Locus() {
			names = append(names, a.Rec.Name)
		}
		loci = append(loci, names)
	}
	return loci, s.Err()
}

func TestLocusScanner(t *testing.T) {
	loci, err := scanLoci(t, []*sam.Record{
		newDiscordant("rec1", chr1, 0, 10, '+', "5p"),
		newDiscordant("rec2", chr1, 5, 10, '+', "5p"),
		newDiscordant("rec3", chr1, 50, 10, '+', "5p"),
	})
	assert.NoError(t, err)
	expect.EQ(t, loci, [][]string{{"rec1", "rec2"}, {"rec3"}})

	// A new reference always starts a new locus, and a window extends
	// through chained overlaps.
	loci, err = scanLoci(t, []*sam.Record{
		newDiscordant("a", chr1, 0, 10, '+', "5p"),
		newDiscordant("b", chr1, 9, 10, '-', "3p"),
		newDiscordant("c", chr1, 18, 10, '+', "3p"),
		newDiscordant("d", chr2, 0, 10, '+', "5p"),
	})
	assert.NoError(t, err)
	expect.EQ(t, loci, [][]string{{"a", "b", "c"}, {"d"}})

	loci, err = scanLoci(t, nil)
	assert.NoError(t, err)
	expect.EQ(t, len(loci), 0)
}

func TestLocusScannerUnsorted(t *testing.T) {
	for _, recs := range [][]*sam.Record{
		{
			newDiscordant("a", chr1, 50, 10, '+', "5p"),
			newDiscordant("b", chr1, 10, 10, '+', "5p"),
		},
		{
			newDiscordant("a", chr2, 10, 10, '+', "5p"),
			newDiscordant("b", chr1, 20, 10, '+', "5p"),
		},
	} {
		_, err := scanLoci(t, recs)
		_, ok := err.(*UnsortedInputError)
		expect.True(t, ok, "err: %v", err)
	}
}

func TestClusterLocusBuckets(t *testing.T) {
	var locus []*Alignment
	for _, r := range []*sam.Record{
		newDiscordant("m1", chr1, 100, 50, '-', "3p"),
		newDiscordant("p1", chr1, 100, 50, '+', "5p"),
		newDiscordant("p2", chr1, 120, 50, '+', "5p"),
		newDiscordant("q1", chr1, 140, 50, '+', "3p"),
		newDiscordant("p3", chr1, 400, 50, '+', "5p"),
	} {
		a, err := NewAlignment(r)
		require.NoError(t, err)
		locus = append(locus, a)
	}
	clusters, next, err := ClusterLocus(locus, 10, 0)
	assert.NoError(t, err)
	expect.EQ(t, next, ClusterID(14))
	expect.EQ(t, clusters, []Cluster{
		{Ref: "chr1", Start: 100, End: 170, ID: 10, Strand: Forward, Orientation: FivePrime, Members: []string{"p1", "p2"}},
		{Ref: "chr1", Start: 400, End: 450, ID: 11, Strand: Forward, Orientation: FivePrime, Members: []string{"p3"}},
		{Ref: "chr1", Start: 140, End: 190, ID: 12, Strand: Forward, Orientation: ThreePrime, Members: []string{"q1"}},
		{Ref: "chr1", Start: 100, End: 150, ID: 13, Strand: Reverse, Orientation: ThreePrime, Members: []string{"m1"}},
	})
	want := map[string]ClusterID{"m1": 13, "p1": 10, "p2": 10, "q1": 12, "p3": 11}
	for _, a := range locus {
		expect.EQ(t, a.ClusterID, want[a.Rec.Name], a.Rec.Name)
	}
}

type recordSlice []*sam.Record

func (s *recordSlice) Write(r *sam.Record) error {
	*s = append(*s, r)
	return nil
}

func TestClusterDiscordantReads(t *testing.T) {
	recs := []*sam.Record{
		newDiscordant("a", chr1, 0, 10, '+', "5p"),
		newDiscordant("b", chr1, 5, 10, '-', "5p"),
		newDiscordant("c", chr1, 8, 10, '+', "5p"),
		newDiscordant("d", chr1, 100, 10, '+', "3p"),
		newDiscordant("e", chr2, 100, 10, '-', "3p"),
	}
	var (
		buf   bytes.Buffer
		out   recordSlice
		stats Stats
	)
	cw := NewClusterWriter(&buf)
	next, err := ClusterDiscordantReads(NewSliceReader(recs), "test", cw, &out, DefaultOpts, 1, &stats)
	assert.NoError(t, err)
	assert.NoError(t, cw.Flush())
	expect.EQ(t, next, ClusterID(5))
	expect.EQ(t, buf.String(), "chr1\t0\t18\t1\t+\t2\t5p\ta,c\n"+
		"chr1\t5\t15\t2\t-\t1\t5p\tb\n"+
		"chr1\t100\t110\t3\t+\t1\t3p\td\n"+
		"chr2\t100\t110\t4\t-\t1\t3p\te\n")
	expect.EQ(t, stats.Records, 5)
	expect.EQ(t, stats.Loci, 3)
	expect.EQ(t, stats.Clusters, 4)

	// Records are written in input order, each with its cluster tag.
	assert.EQ(t, len(out), len(recs))
	var prev ClusterID
	for i, r := range out {
		expect.EQ(t, r.Name, recs[i].Name)
		v, ok := intValue(r.AuxFields.Get(ClusterTag).Value())
		expect.True(t, ok)
		if i > 0 && r.Name != "c" {
			expect.GT(t, ClusterID(v), prev)
		}
		prev = ClusterID(v)
	}

	clusters, err := ReadClusters(&buf, "test")
	assert.NoError(t, err)
	expect.EQ(t, len(clusters), 4)
	expect.EQ(t, clusters[0].Members, []string{"a", "c"})
	expect.EQ(t, clusters[3].Strand, Reverse)
	expect.EQ(t, clusters[3].Orientation, ThreePrime)
}

func TestClusterIDsIncrease(t *testing.T) {
	var recs []*sam.Record
	strands := []byte{'+', '-'}
	orientations := []string{"5p", "3p"}
	for locus := 0; locus < 5; locus++ {
		for i := 0; i < 8; i++ {
			recs = append(recs, newDiscordant("r", chr1, locus*1000+i*30, 40, strands[i%2], orientations[(i/2)%2]))
		}
	}
	var buf bytes.Buffer
	stats := Stats{}
	cw := NewClusterWriter(&buf)
	next, err := ClusterDiscordantReads(NewSliceReader(recs), "test", cw, nil, DefaultOpts, 0, &stats)
	assert.NoError(t, err)
	assert.NoError(t, cw.Flush())
	clusters, err := ReadClusters(&buf, "test")
	assert.NoError(t, err)
	assert.EQ(t, len(clusters), stats.Clusters)
	for i, c := range clusters {
		expect.EQ(t, c.ID, ClusterID(i))
	}
	expect.EQ(t, next, ClusterID(len(clusters)))
}

func TestClusterIDOutOfRange(t *testing.T) {
	recs := func() []*sam.Record {
		return []*sam.Record{newDiscordant("a", chr1, 0, 10, '+', "5p")}
	}
	var buf bytes.Buffer
	next, err := ClusterDiscordantReads(NewSliceReader(recs()), "test", NewClusterWriter(&buf), nil, DefaultOpts, math.MaxInt32, &Stats{})
	assert.NoError(t, err)
	expect.EQ(t, next, ClusterID(math.MaxInt32+1))

	_, err = ClusterDiscordantReads(NewSliceReader(recs()), "test", NewClusterWriter(&buf), nil, DefaultOpts, 1<<31, &Stats{})
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "cluster id 2147483648")

	a, err := NewAlignment(newDiscordant("r1", chr1, 10, 20, '+', "5p"))
	assert.NoError(t, err)
	assert.NoError(t, a.SetCluster(3))
	expect.NotNil(t, a.SetCluster(1<<40))
	expect.EQ(t, a.ClusterID, ClusterID(3))
}
