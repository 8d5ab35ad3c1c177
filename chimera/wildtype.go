package chimera

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
)

// AlignmentFetcher gives random access to the alignments of reads against
// unfused transcripts.
type AlignmentFetcher interface {
	// RefLength returns the length of the named reference. It returns a
	// *ReferenceLookupError if the reference does not exist.
	RefLength(ref string) (int, error)
	// Fetch returns the records overlapping [start, end) of the reference.
	// A window outside the reference is a *CoordinateOutOfRangeError.
	Fetch(ref string, start, end int) ([]*sam.Record, error)
}

// BAMFetcher is an AlignmentFetcher backed by an indexed BAM file.
type BAMFetcher struct {
	ctx  context.Context
	in   file.File
	r    *bam.Reader
	idx  *bam.Index
	refs map[string]*sam.Reference
}

// OpenBAMFetcher opens a BAM file and its index. If indexPath is empty,
// path+".bai" is used.
func OpenBAMFetcher(ctx context.Context, path, indexPath string) (*BAMFetcher, error) {
	if indexPath == "" {
		indexPath = path + ".bai"
	}
	in, err := file.Open(ctx, indexPath)
	if err != nil {
		return nil, errors.E(err, "open", indexPath)
	}
	idx, err := bam.ReadIndex(in.Reader(ctx))
	if cerr := in.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.E(err, "read index", indexPath)
	}
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(err, "open", path)
	}
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, "read", path)
	}
	f := &BAMFetcher{ctx: ctx, in: in, r: r, idx: idx, refs: map[string]*sam.Reference{}}
	for _, ref := range r.Header().Refs() {
		f.refs[ref.Name()] = ref
	}
	return f, nil
}

// RefLength implements AlignmentFetcher.
func (f *BAMFetcher) RefLength(ref string) (int, error) {
	r, ok := f.refs[ref]
	if !ok {
		return 0, &ReferenceLookupError{Kind: "reference", Name: ref}
	}
	return r.Len(), nil
}

// Fetch implements AlignmentFetcher.
func (f *BAMFetcher) Fetch(ref string, start, end int) ([]*sam.Record, error) {
	r, ok := f.refs[ref]
	if !ok {
		return nil, &ReferenceLookupError{Kind: "reference", Name: ref}
	}
	if err := checkWindow(ref, start, end, r.Len()); err != nil {
		return nil, err
	}
	if start == end {
		return nil, nil
	}
	chunks, err := f.idx.Chunks(r, start, end)
	if err != nil {
		return nil, chunkError(ref, start, end, err)
	}
	it, err := bam.NewIterator(f.r, chunks)
	if err != nil {
		return nil, errors.E(err, "fetch", ref)
	}
	var recs []*sam.Record
	for it.Next() {
		rec := it.Record()
		if rec.Ref == nil || rec.Ref.ID() != r.ID() || rec.Pos >= end || rec.End() <= start {
			continue
		}
		recs = append(recs, rec)
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return nil, errors.E(err, "fetch", ref)
	}
	return recs, it.Close()
}

// checkWindow verifies that [start, end) lies within a reference of the
// given length.
func checkWindow(ref string, start, end, length int) error {
	switch {
	case start < 0 || start > length:
		return &CoordinateOutOfRangeError{Transcript: ref, Offset: start, Length: length}
	case end < start || end > length:
		return &CoordinateOutOfRangeError{Transcript: ref, Offset: end, Length: length}
	}
	return nil
}

// chunkError classifies an error of bam.Index.Chunks. A reference without
// bins holds no alignments, so index.ErrNoReference yields nil. Any other
// error, including index.ErrInvalid, is returned.
func chunkError(ref string, start, end int, err error) error {
	if err == index.ErrNoReference {
		log.Debug.Printf("fetch %s:%d-%d: %v", ref, start, end, err)
		return nil
	}
	return errors.E(err, fmt.Sprintf("fetch %s:%d-%d", ref, start, end))
}

// Close closes the underlying file.
func (f *BAMFetcher) Close() error {
	e := errors.Once{}
	e.Set(f.r.Close())
	e.Set(f.in.Close(f.ctx))
	return e.Err()
}

// SliceFetcher is an in-memory AlignmentFetcher.
type SliceFetcher struct {
	lengths map[string]int
	recs    map[string][]*sam.Record
}

// NewSliceFetcher creates a SliceFetcher over recs. Each record must have a
// reference from the header.
func NewSliceFetcher(header *sam.Header, recs []*sam.Record) *SliceFetcher {
	f := &SliceFetcher{lengths: map[string]int{}, recs: map[string][]*sam.Record{}}
	for _, ref := range header.Refs() {
		f.lengths[ref.Name()] = ref.Len()
	}
	for _, r := range recs {
		f.recs[r.Ref.Name()] = append(f.recs[r.Ref.Name()], r)
	}
	return f
}

// RefLength implements AlignmentFetcher.
func (f *SliceFetcher) RefLength(ref string) (int, error) {
	n, ok := f.lengths[ref]
	if !ok {
		return 0, &ReferenceLookupError{Kind: "reference", Name: ref}
	}
	return n, nil
}

// Fetch implements AlignmentFetcher.
func (f *SliceFetcher) Fetch(ref string, start, end int) ([]*sam.Record, error) {
	length, ok := f.lengths[ref]
	if !ok {
		return nil, &ReferenceLookupError{Kind: "reference", Name: ref}
	}
	if err := checkWindow(ref, start, end, length); err != nil {
		return nil, err
	}
	var recs []*sam.Record
	for _, r := range f.recs[ref] {
		if r.Pos < end && r.End() > start {
			recs = append(recs, r)
		}
	}
	return recs, nil
}

// countWildTypeFragments counts the fragments among recs whose span, from
// the smallest start to the largest end of their reads, strictly contains
// position bp. Reads are paired by name.
func countWildTypeFragments(recs []*sam.Record, bp int) int {
	type span struct{ start, end int }
	frags := map[string]span{}
	for _, r := range recs {
		s, ok := frags[r.Name]
		if !ok {
			s = span{r.Pos, r.End()}
		} else {
			s.start = minInt(s.start, r.Pos)
			s.end = maxInt(s.end, r.End())
		}
		frags[r.Name] = s
	}
	n := 0
	for _, s := range frags {
		if s.start < bp && bp < s.end {
			n++
		}
	}
	return n
}
