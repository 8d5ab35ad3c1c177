package chimera

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/chimera/interval"
	"github.com/pkg/errors"
)

// transcriptInfo holds the coordinate tables of one transcript.
type transcriptInfo struct {
	feature *TranscriptFeature
	// exons in transcription order; reversed for '-' strand transcripts.
	exons []Exon
	// prefix[i] is the transcript offset of the first base of exons[i].
	prefix  []int
	length  int
	cluster int
}

// TranscriptMap translates transcript offsets to genome positions and maps
// transcripts to isoform clusters. A transcript's isoform cluster contains
// every transcript whose exons overlap its exons on the genome, directly or
// through other transcripts, regardless of strand. It is immutable once built
// and safe for concurrent use.
type TranscriptMap struct {
	tx          map[string]*transcriptInfo
	numClusters int
}

// BuildTranscriptMap creates a TranscriptMap. Transcript names must be
// unique.
func BuildTranscriptMap(features []TranscriptFeature) (*TranscriptMap, error) {
	m := &TranscriptMap{tx: make(map[string]*transcriptInfo, len(features))}
	infos := make([]*transcriptInfo, len(features))
	for i := range features {
		f := &features[i]
		if _, ok := m.tx[f.Name]; ok {
			return nil, &MalformedRecordError{Record: f.Name, Err: errors.New("duplicate transcript")}
		}
		info := &transcriptInfo{feature: f, exons: append([]Exon(nil), f.Exons...)}
		if f.Strand == '-' {
			for l, r := 0, len(info.exons)-1; l < r; l, r = l+1, r-1 {
				info.exons[l], info.exons[r] = info.exons[r], info.exons[l]
			}
		}
		info.prefix = make([]int, len(info.exons))
		for j, e := range info.exons {
			info.prefix[j] = info.length
			info.length += e.End - e.Start
		}
		m.tx[f.Name] = info
		infos[i] = info
	}
	if err := m.buildClusters(features, infos); err != nil {
		return nil, err
	}
	log.Debug.Printf("transcript map: %d transcripts, %d isoform clusters", len(features), m.numClusters)
	return m, nil
}

// buildClusters clusters all exons of each chromosome, then joins the
// transcripts that share an exon cluster. Cluster ids are dense and follow
// (chromosome name, genomic start) order.
func (m *TranscriptMap) buildClusters(features []TranscriptFeature, infos []*transcriptInfo) error {
	trees := map[string]*interval.ClusterTree{}
	for i, f := range features {
		t := trees[f.Chrom]
		if t == nil {
			t = interval.NewClusterTree(0)
			trees[f.Chrom] = t
		}
		for _, e := range f.Exons {
			if err := t.Insert(e.Start, e.End, i); err != nil {
				return &MalformedRecordError{Record: f.Name, Err: err}
			}
		}
	}
	parent := make([]int, len(features))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	chroms := make([]string, 0, len(trees))
	for c := range trees {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)
	var regions []interval.Region
	for _, c := range chroms {
		s := trees[c].Regions()
		for s.Scan() {
			r := s.Region()
			root := find(r.Labels[0])
			for _, l := range r.Labels[1:] {
				if lr := find(l); lr != root {
					parent[lr] = root
				}
			}
			regions = append(regions, r)
		}
	}
	ids := map[int]int{}
	for _, r := range regions {
		root := find(r.Labels[0])
		if _, ok := ids[root]; !ok {
			ids[root] = len(ids)
		}
	}
	for i, info := range infos {
		info.cluster = ids[find(i)]
	}
	m.numClusters = len(ids)
	return nil
}

func (m *TranscriptMap) lookup(tx string) (*transcriptInfo, error) {
	info := m.tx[tx]
	if info == nil {
		return nil, &ReferenceLookupError{Kind: "transcript", Name: tx}
	}
	return info, nil
}

// Feature returns the feature of the named transcript.
func (m *TranscriptMap) Feature(tx string) (*TranscriptFeature, error) {
	info, err := m.lookup(tx)
	if err != nil {
		return nil, err
	}
	return info.feature, nil
}

// Length returns the exonic length of the transcript.
func (m *TranscriptMap) Length(tx string) (int, error) {
	info, err := m.lookup(tx)
	if err != nil {
		return 0, err
	}
	return info.length, nil
}

// ClusterOf returns the isoform cluster id of the transcript.
func (m *TranscriptMap) ClusterOf(tx string) (int, error) {
	info, err := m.lookup(tx)
	if err != nil {
		return 0, err
	}
	return info.cluster, nil
}

// NumClusters returns the number of isoform clusters.
func (m *TranscriptMap) NumClusters() int { return m.numClusters }

// exonIndex returns the index, in transcription order, of the exon holding
// transcript offset off.
func (info *transcriptInfo) exonIndex(tx string, off int) (int, error) {
	if off < 0 || off >= info.length {
		return 0, &CoordinateOutOfRangeError{Transcript: tx, Offset: off, Length: info.length}
	}
	return sort.Search(len(info.prefix), func(i int) bool { return info.prefix[i] > off }) - 1, nil
}

// ToGenome translates a zero-based transcript offset to a genomic position
// on the transcript's chromosome.
func (m *TranscriptMap) ToGenome(tx string, off int) (int, error) {
	info, err := m.lookup(tx)
	if err != nil {
		return 0, err
	}
	i, err := info.exonIndex(tx, off)
	if err != nil {
		return 0, err
	}
	d := off - info.prefix[i]
	if info.feature.Strand == '-' {
		return info.exons[i].End - 1 - d, nil
	}
	return info.exons[i].Start + d, nil
}

// ExonSpan returns the transcript-offset range [start, end) of the exon that
// holds offset off, along with the exon's index in transcription order and
// the number of exons.
func (m *TranscriptMap) ExonSpan(tx string, off int) (start, end, index, numExons int, err error) {
	info, err := m.lookup(tx)
	if err != nil {
		return
	}
	if index, err = info.exonIndex(tx, off); err != nil {
		return
	}
	e := info.exons[index]
	start = info.prefix[index]
	end = start + e.End - e.Start
	numExons = len(info.exons)
	return
}
