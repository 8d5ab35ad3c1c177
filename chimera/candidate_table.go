package chimera

import (
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// The candidate table has no header. Columns, in order:
//
//   tx5p start5p end5p tx3p start3p end3p name inner_dist5p inner_dist3p
//   num_frags weighted_unique_frags weighted_cov unique_spanning_pos
//   frags spanning
//
// frags is a ';'-separated list of "name,num_hits,start5p,end5p,start3p,end3p"
// and spanning a ';'-separated list of "name,num_hits,pos,end,mismatches".
// An empty list is written as ".". Floats are written in the shortest form
// that parses back to the same value.

const emptyList = "."

// CandidateSink receives candidates. *CandidateWriter implements it.
type CandidateSink interface {
	Write(c *Candidate) error
}

// CandidateWriter writes the candidate table.
type CandidateWriter struct {
	w *tsv.Writer
}

// NewCandidateWriter creates a CandidateWriter on w.
func NewCandidateWriter(w io.Writer) *CandidateWriter {
	return &CandidateWriter{w: tsv.NewWriter(w)}
}

// Write adds one row.
func (w *CandidateWriter) Write(c *Candidate) error {
	w.w.WriteString(c.Partner5p.Tx)
	w.w.WriteInt64(int64(c.Partner5p.Start))
	w.w.WriteInt64(int64(c.Partner5p.End))
	w.w.WriteString(c.Partner3p.Tx)
	w.w.WriteInt64(int64(c.Partner3p.Start))
	w.w.WriteInt64(int64(c.Partner3p.End))
	w.w.WriteString(c.Name)
	w.w.WriteInt64(int64(c.Partner5p.InnerDist))
	w.w.WriteInt64(int64(c.Partner3p.InnerDist))
	w.w.WriteInt64(int64(c.NumFrags))
	w.w.WriteFloat64(c.WeightedUniqueFrags, 'g', -1)
	w.w.WriteFloat64(c.WeightedCov, 'g', -1)
	w.w.WriteInt64(int64(c.UniqueSpanningPos))

	var b strings.Builder
	for i, f := range c.Frags {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(f.Name)
		for _, v := range [...]int{f.NumHits, f.Start5p, f.End5p, f.Start3p, f.End3p} {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(v))
		}
	}
	if b.Len() == 0 {
		b.WriteString(emptyList)
	}
	w.w.WriteString(b.String())

	b.Reset()
	for i, s := range c.Spanning {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(s.Name)
		for _, v := range [...]int{s.NumHits, s.Pos, s.End, s.Mismatches} {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(v))
		}
	}
	if b.Len() == 0 {
		b.WriteString(emptyList)
	}
	w.w.WriteString(b.String())
	return w.w.EndLine()
}

// Flush must be called after the last Write.
func (w *CandidateWriter) Flush() error { return w.w.Flush() }

type candidateRow struct {
	Tx5p                string
	Start5p             int
	End5p               int
	Tx3p                string
	Start3p             int
	End3p               int
	Name                string
	InnerDist5p         int
	InnerDist3p         int
	NumFrags            int
	WeightedUniqueFrags float64
	WeightedCov         float64
	UniqueSpanningPos   int
	Frags               string
	Spanning            string
}

// CandidateReader reads the candidate table one row at a time.
type CandidateReader struct {
	r    *tsv.Reader
	path string
	line int
}

// NewCandidateReader creates a CandidateReader on in. path is used only in
// error messages.
func NewCandidateReader(in io.Reader, path string) *CandidateReader {
	return &CandidateReader{r: tsv.NewReader(in), path: path}
}

// splitInts parses a comma-separated list of exactly n integers.
func splitInts(fields []string, n int) ([]int, error) {
	if len(fields) != n {
		return nil, errors.Errorf("expected %d numbers, found %d", n, len(fields))
	}
	v := make([]int, n)
	for i, f := range fields {
		var err error
		if v[i], err = strconv.Atoi(f); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func splitList(s string) []string {
	if s == emptyList || s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// Read returns the next candidate, or io.EOF at the end of the table.
func (r *CandidateReader) Read() (*Candidate, error) {
	var row candidateRow
	r.line++
	if err := r.r.Read(&row); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, &MalformedRecordError{Path: r.path, Line: r.line, Err: err}
	}
	bad := func(err error) error {
		return &MalformedRecordError{Path: r.path, Line: r.line, Record: row.Name, Err: err}
	}
	c := &Candidate{
		Name:                row.Name,
		Partner5p:           Partner{Tx: row.Tx5p, Start: row.Start5p, End: row.End5p, InnerDist: row.InnerDist5p},
		Partner3p:           Partner{Tx: row.Tx3p, Start: row.Start3p, End: row.End3p, InnerDist: row.InnerDist3p},
		NumFrags:            row.NumFrags,
		WeightedUniqueFrags: row.WeightedUniqueFrags,
		WeightedCov:         row.WeightedCov,
		UniqueSpanningPos:   row.UniqueSpanningPos,
	}
	for _, item := range splitList(row.Frags) {
		fields := strings.Split(item, ",")
		v, err := splitInts(fields[1:], 5)
		if err != nil {
			return nil, bad(errors.Wrapf(err, "frag %q", item))
		}
		c.Frags = append(c.Frags, EncompassingFrag{
			Name: fields[0], NumHits: v[0], Start5p: v[1], End5p: v[2], Start3p: v[3], End3p: v[4]})
	}
	for _, item := range splitList(row.Spanning) {
		fields := strings.Split(item, ",")
		v, err := splitInts(fields[1:], 4)
		if err != nil {
			return nil, bad(errors.Wrapf(err, "spanning read %q", item))
		}
		c.Spanning = append(c.Spanning, SpanningRead{
			Name: fields[0], NumHits: v[0], Pos: v[1], End: v[2], Mismatches: v[3]})
	}
	return c, nil
}

// ReadCandidates reads a whole candidate table.
func ReadCandidates(in io.Reader, path string) ([]*Candidate, error) {
	r := NewCandidateReader(in, path)
	var candidates []*Candidate
	for {
		c, err := r.Read()
		if err == io.EOF {
			return candidates, nil
		}
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
}
