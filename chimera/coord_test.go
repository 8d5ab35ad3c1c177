package chimera

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testFeatures = `tx_name	gene_name	chrom	strand	exon_starts	exon_ends
TX1	GENEA	chr1	+	100,300,500,	200,350,600,
TX2	GENEA	chr1	-	100,400	200,450
TX3	GENEB	chr1	+	1000	1100
TX4	GENEC	chr2	+	0	50
`

func testTranscriptMap(t *testing.T) *TranscriptMap {
	features, err := ParseTranscriptFeatures(strings.NewReader(testFeatures), "test")
	assert.NoError(t, err)
	tm, err := BuildTranscriptMap(features)
	assert.NoError(t, err)
	return tm
}

func TestParseTranscriptFeatures(t *testing.T) {
	features, err := ParseTranscriptFeatures(strings.NewReader(testFeatures), "test")
	assert.NoError(t, err)
	assert.EQ(t, len(features), 4)
	expect.EQ(t, features[0], TranscriptFeature{
		Name: "TX1", Gene: "GENEA", Chrom: "chr1", Strand: '+',
		Exons: []Exon{{100, 200}, {300, 350}, {500, 600}},
	})
	expect.EQ(t, features[1].Length(), 150)

	for _, bad := range []string{
		"TX1\tG\tchr1\t*\t100\t200\n",
		"TX1\tG\tchr1\t+\t100,300\t200\n",
		"TX1\tG\tchr1\t+\t100\t50\n",
		"TX1\tG\tchr1\t+\t100,150\t200,250\n",
		"TX1\tG\tchr1\t+\tx\t200\n",
	} {
		in := "tx_name\tgene_name\tchrom\tstrand\texon_starts\texon_ends\n" + bad
		_, err := ParseTranscriptFeatures(strings.NewReader(in), "test")
		_, ok := err.(*MalformedRecordError)
		expect.True(t, ok, "%q: %v", bad, err)
	}
}

func TestParseTranscriptFeaturesColumnOrder(t *testing.T) {
	in := "gene_name\tstrand\ttx_name\tsource\texon_ends\tchrom\texon_starts\n" +
		"GENEA\t-\tTX2\tensembl\t200,450\tchr1\t100,400\n"
	features, err := ParseTranscriptFeatures(strings.NewReader(in), "test")
	assert.NoError(t, err)
	assert.EQ(t, len(features), 1)
	expect.EQ(t, features[0], TranscriptFeature{
		Name: "TX2", Gene: "GENEA", Chrom: "chr1", Strand: '-',
		Exons: []Exon{{100, 200}, {400, 450}},
	})
}

func TestReadTranscriptFeaturesGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpdir, "features.tsv.gz")
	out, err := os.Create(path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(out)
	_, err = gz.Write([]byte(testFeatures))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, out.Close())

	features, err := ReadTranscriptFeatures(vcontext.Background(), path)
	assert.NoError(t, err)
	expect.EQ(t, len(features), 4)
	expect.EQ(t, features[3].Name, "TX4")
}

func TestToGenome(t *testing.T) {
	tm := testTranscriptMap(t)
	tests := []struct {
		tx       string
		off, pos int
	}{
		{"TX1", 0, 100},
		{"TX1", 99, 199},
		{"TX1", 100, 300},
		{"TX1", 149, 349},
		{"TX1", 150, 500},
		{"TX1", 249, 599},
		{"TX2", 0, 449},
		{"TX2", 49, 400},
		{"TX2", 50, 199},
		{"TX2", 149, 100},
	}
	for _, test := range tests {
		pos, err := tm.ToGenome(test.tx, test.off)
		assert.NoError(t, err)
		expect.EQ(t, pos, test.pos, "%s:%d", test.tx, test.off)
	}

	for _, off := range []int{-1, 250, 1000} {
		_, err := tm.ToGenome("TX1", off)
		e, ok := err.(*CoordinateOutOfRangeError)
		assert.True(t, ok, "offset %d: %v", off, err)
		expect.EQ(t, e.Length, 250)
		expect.True(t, IsRecoverable(err))
	}
	_, err := tm.ToGenome("NOPE", 0)
	_, ok := err.(*ReferenceLookupError)
	expect.True(t, ok, "err: %v", err)
	expect.True(t, IsRecoverable(err))
}

func TestExonSpan(t *testing.T) {
	tm := testTranscriptMap(t)
	start, end, index, n, err := tm.ExonSpan("TX2", 60)
	assert.NoError(t, err)
	expect.EQ(t, []int{start, end, index, n}, []int{50, 150, 1, 2})
	start, end, index, n, err = tm.ExonSpan("TX1", 120)
	assert.NoError(t, err)
	expect.EQ(t, []int{start, end, index, n}, []int{100, 150, 1, 3})
}

func TestIsoformClusters(t *testing.T) {
	tm := testTranscriptMap(t)
	cluster := func(tx string) int {
		c, err := tm.ClusterOf(tx)
		assert.NoError(t, err)
		return c
	}
	// TX1 and TX2 share an exon even though they are on opposite strands.
	expect.EQ(t, cluster("TX1"), 0)
	expect.EQ(t, cluster("TX2"), 0)
	expect.EQ(t, cluster("TX3"), 1)
	expect.EQ(t, cluster("TX4"), 2)
	expect.EQ(t, tm.NumClusters(), 3)
}

func TestIsoformClustersTransitive(t *testing.T) {
	tm, err := BuildTranscriptMap([]TranscriptFeature{
		{Name: "A", Chrom: "chr1", Strand: '+', Exons: []Exon{{0, 10}, {100, 110}}},
		{Name: "C", Chrom: "chr1", Strand: '+', Exons: []Exon{{500, 510}}},
		{Name: "B", Chrom: "chr1", Strand: '+', Exons: []Exon{{105, 200}, {505, 520}}},
		{Name: "D", Chrom: "chr1", Strand: '+', Exons: []Exon{{300, 310}}},
	})
	assert.NoError(t, err)
	for _, tx := range []string{"A", "B", "C"} {
		c, err := tm.ClusterOf(tx)
		assert.NoError(t, err)
		expect.EQ(t, c, 0, tx)
	}
	c, err := tm.ClusterOf("D")
	assert.NoError(t, err)
	expect.EQ(t, c, 1)

	_, err = BuildTranscriptMap([]TranscriptFeature{
		{Name: "A", Chrom: "chr1", Strand: '+', Exons: []Exon{{0, 10}}},
		{Name: "A", Chrom: "chr1", Strand: '+', Exons: []Exon{{20, 30}}},
	})
	_, ok := err.(*MalformedRecordError)
	expect.True(t, ok, "err: %v", err)
}
