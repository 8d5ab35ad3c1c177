package chimera

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/chimera/interval"
)

// Cluster is a group of discordant alignments of one (strand, orientation)
// bucket whose intervals overlap.
type Cluster struct {
	Ref         string
	Start, End  int
	ID          ClusterID
	Strand      Strand
	Orientation Orientation
	// Members lists the read names in input order.
	Members []string
}

// LocusScanner partitions a stream of alignments sorted by (reference,
// position) into loci: maximal runs of records whose intervals chain
// together by overlap. Only one locus is buffered at a time.
//
// Example:
//   s := NewLocusScanner(r, path)
//   for s.Scan() {
//     locus := s.Locus()
//     ...
//   }
//   if err := s.Err(); err != nil {
//     ...
//   }
type LocusScanner struct {
	r    RecordReader
	path string

	pending *Alignment
	locus   []*Alignment
	done    bool
	err     error

	nRecords         int
	prevRef, prevPos int
}

// NewLocusScanner creates a scanner that reads from r. path is used only in
// error messages.
func NewLocusScanner(r RecordReader, path string) *LocusScanner {
	return &LocusScanner{r: r, path: path, prevRef: -1}
}

// Scan reads the next locus. It returns false at the end of input or on
// error.
func (s *LocusScanner) Scan() bool {
	if s.err != nil || (s.done && s.pending == nil) {
		return false
	}
	s.locus = nil
	var winRef, winStart, winEnd int
	add := func(a *Alignment) {
		if len(s.locus) == 0 {
			winRef, winStart, winEnd = a.Rec.Ref.ID(), a.Rec.Pos, a.Rec.End()
		} else if e := a.Rec.End(); e > winEnd {
			winEnd = e
		}
		s.locus = append(s.locus, a)
	}
	if s.pending != nil {
		add(s.pending)
		s.pending = nil
	}
	for !s.done {
		rec, err := s.r.Read()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			s.err = errors.E(err, "read", s.path)
			return false
		}
		a, err := NewAlignment(rec)
		if err != nil {
			err.(*MalformedRecordError).Path = s.path
			s.err = err
			return false
		}
		s.nRecords++
		ref := rec.Ref.ID()
		if ref < s.prevRef || (ref == s.prevRef && rec.Pos < s.prevPos) {
			s.err = &UnsortedInputError{
				Path: s.path,
				Prev: fmt.Sprintf("%d:%d", s.prevRef, s.prevPos),
				Cur:  fmt.Sprintf("%s(%d):%d %s", refName(rec), ref, rec.Pos, rec.Name),
			}
			return false
		}
		s.prevRef, s.prevPos = ref, rec.Pos
		if len(s.locus) > 0 && !(ref == winRef && rec.Pos <= winEnd && winStart <= rec.End()) {
			s.pending = a
			return true
		}
		add(a)
	}
	return len(s.locus) > 0
}

// Locus returns the records of the current locus, in input order.
func (s *LocusScanner) Locus() []*Alignment { return s.locus }

// Err returns the error that stopped the scan, if any.
func (s *LocusScanner) Err() error { return s.err }

// NumRecords returns the number of records read so far.
func (s *LocusScanner) NumRecords() int { return s.nRecords }

// ClusterLocus clusters the alignments of one locus separately for each
// (strand, orientation) bucket. Clusters are numbered consecutively from
// nextID, in the order (+,5'), (+,3'), (-,5'), (-,3') and by start within a
// bucket. Every alignment gets the id of its cluster, both in ClusterID and
// in the XC tag of its record.
//
// It returns the clusters and the id to pass to the next call. An id that
// does not fit the XC tag is an error.
func ClusterLocus(locus []*Alignment, nextID ClusterID, maxGap int) ([]Cluster, ClusterID, error) {
	var buckets [2][2]*interval.ClusterTree
	for i, a := range locus {
		t := buckets[a.Strand][a.Orientation]
		if t == nil {
			t = interval.NewClusterTree(maxGap)
			buckets[a.Strand][a.Orientation] = t
		}
		if err := t.Insert(a.Rec.Pos, a.Rec.End(), i); err != nil {
			return nil, nextID, &MalformedRecordError{Record: a.Rec.Name, Err: err}
		}
	}
	var clusters []Cluster
	for strand := range buckets {
		for orientation, t := range buckets[strand] {
			if t == nil {
				continue
			}
			s := t.Regions()
			for s.Scan() {
				r := s.Region()
				c := Cluster{
					Ref:         refName(locus[r.Labels[0]].Rec),
					Start:       r.Start,
					End:         r.End,
					ID:          nextID,
					Strand:      Strand(strand),
					Orientation: Orientation(orientation),
					Members:     make([]string, 0, len(r.Labels)),
				}
				for _, l := range r.Labels {
					if err := locus[l].SetCluster(nextID); err != nil {
						return nil, nextID, err
					}
					c.Members = append(c.Members, locus[l].Rec.Name)
				}
				clusters = append(clusters, c)
				nextID++
			}
		}
	}
	return clusters, nextID, nil
}

// ClusterDiscordantReads reads sorted discordant alignments from r, clusters
// them locus by locus, writes the cluster rows to clusters and the re-tagged
// records to out, in input order. out may be nil. Cluster ids start at
// firstID; the id following the last one used is returned.
func ClusterDiscordantReads(r RecordReader, path string, clusters *ClusterWriter, out RecordWriter, opts Opts, firstID ClusterID, stats *Stats) (ClusterID, error) {
	s := NewLocusScanner(r, path)
	nextID := firstID
	for s.Scan() {
		locus := s.Locus()
		stats.Loci++
		var (
			cs  []Cluster
			err error
		)
		if cs, nextID, err = ClusterLocus(locus, nextID, opts.MaxGap); err != nil {
			return nextID, err
		}
		for _, c := range cs {
			if err := clusters.Write(c); err != nil {
				return nextID, err
			}
		}
		stats.Clusters += len(cs)
		if out != nil {
			for _, a := range locus {
				if err := out.Write(a.Rec); err != nil {
					return nextID, errors.E(err, "write", a.Rec.Name)
				}
			}
		}
	}
	stats.Records += s.NumRecords()
	if err := s.Err(); err != nil {
		return nextID, err
	}
	log.Debug.Printf("%s: %d records, %d loci, %d clusters", path, s.NumRecords(), stats.Loci, stats.Clusters)
	return nextID, nil
}
