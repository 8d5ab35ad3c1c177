package chimera

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/minio/highwayhash"
)

// FalsePositiveSet lists chimeras known to be artifacts, by exact
// breakpoints.
type FalsePositiveSet map[BreakpointKey]struct{}

// ReadFalsePositives parses a headerless TSV with the columns
// "tx5p end5p tx3p start3p".
func ReadFalsePositives(in io.Reader, path string) (FalsePositiveSet, error) {
	r := tsv.NewReader(in)
	s := FalsePositiveSet{}
	for line := 1; ; line++ {
		var k BreakpointKey
		if err := r.Read(&k); err != nil {
			if err == io.EOF {
				return s, nil
			}
			return nil, &MalformedRecordError{Path: path, Line: line, Err: err}
		}
		s[k] = struct{}{}
	}
}

// Filter removes unlikely chimeras and keeps the best supported isoform pair
// of each fusion.
type Filter struct {
	opts     Opts
	tm       *TranscriptMap
	falsePos FalsePositiveSet
	fetcher  AlignmentFetcher
	stats    *Stats
}

// NewFilter creates a Filter. falsePos and fetcher may be nil; a nil fetcher
// disables the wild-type isoform ratio check.
func NewFilter(opts Opts, tm *TranscriptMap, falsePos FalsePositiveSet, fetcher AlignmentFetcher, stats *Stats) *Filter {
	return &Filter{opts: opts, tm: tm, falsePos: falsePos, fetcher: fetcher, stats: stats}
}

func (f *Filter) passCoverage(c *Candidate) bool {
	return c.WeightedUniqueFrags >= f.opts.MinWeightedUniqueFrags
}

func (f *Filter) passInsertSize(c *Candidate) bool {
	if f.opts.MaxInsertSize <= 0 {
		return true
	}
	return c.Partner5p.InnerDist <= f.opts.MaxInsertSize && c.Partner3p.InnerDist <= f.opts.MaxInsertSize
}

func (f *Filter) passFalsePositive(c *Candidate) bool {
	_, ok := f.falsePos[c.Key()]
	return !ok
}

// passIsoformRatio compares the chimeric fragment count with the number of
// fragments that read through the 5' breakpoint of the unfused 5'
// transcript.
func (f *Filter) passIsoformRatio(c *Candidate) (bool, error) {
	if f.fetcher == nil {
		return true, nil
	}
	ref := f.opts.FetchRefPrefix + c.Partner5p.Tx
	length, err := f.fetcher.RefLength(ref)
	if err != nil {
		return false, err
	}
	bp := c.Partner5p.End
	start := maxInt(0, bp-f.opts.MedianInsertSize)
	end := minInt(length, bp+f.opts.MedianInsertSize)
	recs, err := f.fetcher.Fetch(ref, start, end)
	if err != nil {
		return false, err
	}
	wt := countWildTypeFragments(recs, bp)
	ratio := float64(c.NumFrags) / float64(maxInt(wt, 1))
	log.Debug.Printf("%s: %d chimeric, %d wild-type fragments", c.Name, c.NumFrags, wt)
	return ratio >= f.opts.IsoformFraction, nil
}

// Check applies the per-candidate filters in order and stops at the first
// failure: coverage, inner distance, false positive list, wild-type isoform
// ratio. It counts the failure in the stats.
func (f *Filter) Check(c *Candidate) (bool, error) {
	if !f.passCoverage(c) {
		f.stats.FilteredCoverage++
		return false, nil
	}
	if !f.passInsertSize(c) {
		f.stats.FilteredInsertSize++
		return false, nil
	}
	if !f.passFalsePositive(c) {
		f.stats.FilteredFalsePositive++
		return false, nil
	}
	ok, err := f.passIsoformRatio(c)
	if err != nil {
		return false, err
	}
	if !ok {
		f.stats.FilteredIsoformRatio++
	}
	return ok, nil
}

type hashKey = [highwayhash.Size]uint8

var zeroSeed = hashKey{}

// isoformGroupKey hashes the isoform clusters and genomic breakpoints of a
// candidate. Candidates with the same key describe the same fusion.
func (f *Filter) isoformGroupKey(c *Candidate, buf []byte) (hashKey, error) {
	cluster5p, err := f.tm.ClusterOf(c.Partner5p.Tx)
	if err != nil {
		return hashKey{}, err
	}
	cluster3p, err := f.tm.ClusterOf(c.Partner3p.Tx)
	if err != nil {
		return hashKey{}, err
	}
	pos5p, err := f.tm.ToGenome(c.Partner5p.Tx, c.Partner5p.End-1)
	if err != nil {
		return hashKey{}, err
	}
	pos3p, err := f.tm.ToGenome(c.Partner3p.Tx, c.Partner3p.Start)
	if err != nil {
		return hashKey{}, err
	}
	for i, v := range [...]int{cluster5p, cluster3p, pos5p, pos3p} {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return highwayhash.Sum(buf[:32], zeroSeed[:]), nil
}

// rankBetter reports whether a ranks above b by (unique spanning positions,
// weighted coverage, fragment count).
func rankBetter(a, b *Candidate) bool {
	if a.UniqueSpanningPos != b.UniqueSpanningPos {
		return a.UniqueSpanningPos > b.UniqueSpanningPos
	}
	if a.WeightedCov != b.WeightedCov {
		return a.WeightedCov > b.WeightedCov
	}
	return a.NumFrags > b.NumFrags
}

// SelectBestIsoforms groups candidates that describe the same fusion and
// keeps, within each group, every candidate tied for the best rank. The
// result preserves the input order. Candidates whose transcripts cannot be
// mapped are dropped and counted.
func (f *Filter) SelectBestIsoforms(candidates []*Candidate) ([]*Candidate, error) {
	buf := make([]byte, 32)
	groups := map[hashKey][]int{}
	mapped := make([]bool, len(candidates))
	for i, c := range candidates {
		key, err := f.isoformGroupKey(c, buf)
		if err != nil {
			if err = f.stats.recordDrop("candidate "+c.Name, err); err != nil {
				return nil, err
			}
			continue
		}
		mapped[i] = true
		groups[key] = append(groups[key], i)
	}
	keep := make([]bool, len(candidates))
	for _, g := range groups {
		best := candidates[g[0]]
		for _, i := range g[1:] {
			if rankBetter(candidates[i], best) {
				best = candidates[i]
			}
		}
		for _, i := range g {
			if !rankBetter(best, candidates[i]) {
				keep[i] = true
			}
		}
	}
	var out []*Candidate
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		} else if mapped[i] {
			f.stats.FilteredNotBest++
		}
	}
	return out, nil
}

// Run filters the candidate table read from r and writes the survivors to
// w, in input order.
func (f *Filter) Run(r *CandidateReader, w CandidateSink) error {
	var (
		passed []*Candidate
		n      int
	)
	for {
		c, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n++
		ok, err := f.Check(c)
		if err != nil {
			if err = f.stats.recordDrop("candidate "+c.Name, err); err != nil {
				return err
			}
			continue
		}
		if ok {
			passed = append(passed, c)
		}
	}
	log.Printf("filter: %d candidates, %d passed filters", n, len(passed))
	best, err := f.SelectBestIsoforms(passed)
	if err != nil {
		return err
	}
	for _, c := range best {
		if err := w.Write(c); err != nil {
			return err
		}
	}
	f.stats.Survivors += len(best)
	log.Printf("filter: %d after choosing best isoforms", len(best))
	return nil
}
