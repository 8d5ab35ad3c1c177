package chimera

import (
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// DiscordantFrag is a read pair whose reads align to two different
// transcripts. Coordinates are transcript offsets, half open.
type DiscordantFrag struct {
	Tx5p           string
	Start5p, End5p int
	Tx3p           string
	Start3p, End3p int
	Name           string
	NumHits        int
}

// FragReader reads discordant fragments from a headerless TSV with the
// columns "tx5p start5p end5p tx3p start3p end3p name num_hits".
type FragReader struct {
	r    *tsv.Reader
	path string
	line int
}

// NewFragReader creates a FragReader on in. path is used only in error
// messages.
func NewFragReader(in io.Reader, path string) *FragReader {
	return &FragReader{r: tsv.NewReader(in), path: path}
}

// Read returns the next fragment, or io.EOF.
func (r *FragReader) Read() (DiscordantFrag, error) {
	var f DiscordantFrag
	r.line++
	if err := r.r.Read(&f); err != nil {
		if err == io.EOF {
			return f, err
		}
		return f, &MalformedRecordError{Path: r.path, Line: r.line, Err: err}
	}
	if f.Start5p >= f.End5p || f.Start3p >= f.End3p || f.NumHits < 1 {
		return f, &MalformedRecordError{Path: r.path, Line: r.line, Record: f.Name,
			Err: errors.Errorf("bad fragment %+v", f)}
	}
	return f, nil
}

// Nominator turns discordant fragments into encompassing chimera candidates.
type Nominator struct {
	tm    *TranscriptMap
	opts  Opts
	stats *Stats
}

// NewNominator creates a Nominator.
func NewNominator(tm *TranscriptMap, opts Opts, stats *Stats) *Nominator {
	return &Nominator{tm: tm, opts: opts, stats: stats}
}

// breakpoint5p returns the 5' breakpoint implied by a read ending at
// transcript offset end. The breakpoint is the end of the exon holding the
// read's last base, unless the read reaches at most ExonJunctionTrim bases
// into that exon, in which case it is the start of the exon.
func (n *Nominator) breakpoint5p(tx string, end int) (int, error) {
	s, e, idx, _, err := n.tm.ExonSpan(tx, end-1)
	if err != nil {
		return 0, err
	}
	if idx > 0 && end-s <= n.opts.ExonJunctionTrim {
		return s, nil
	}
	return e, nil
}

// breakpoint3p returns the 3' breakpoint implied by a read starting at
// transcript offset start. It mirrors breakpoint5p.
func (n *Nominator) breakpoint3p(tx string, start int) (int, error) {
	s, e, idx, numExons, err := n.tm.ExonSpan(tx, start)
	if err != nil {
		return 0, err
	}
	if idx < numExons-1 && e-start <= n.opts.ExonJunctionTrim {
		return e, nil
	}
	return s, nil
}

// checkSpan verifies that [start, end) lies within the transcript.
func (n *Nominator) checkSpan(tx string, start, end int) error {
	length, err := n.tm.Length(tx)
	if err != nil {
		return err
	}
	if start < 0 {
		return &CoordinateOutOfRangeError{Transcript: tx, Offset: start, Length: length}
	}
	if end > length {
		return &CoordinateOutOfRangeError{Transcript: tx, Offset: end - 1, Length: length}
	}
	return nil
}

type breakpointPair struct{ bp5, bp3 int }

// nominationGroup accumulates the candidates of one (tx5p, tx3p) pair.
type nominationGroup struct {
	tx5p, tx3p string
	candidates map[breakpointPair]*Candidate
}

func (n *Nominator) add(g *nominationGroup, f DiscordantFrag) error {
	if err := n.checkSpan(f.Tx5p, f.Start5p, f.End5p); err != nil {
		return err
	}
	if err := n.checkSpan(f.Tx3p, f.Start3p, f.End3p); err != nil {
		return err
	}
	bp5, err := n.breakpoint5p(f.Tx5p, f.End5p)
	if err != nil {
		return err
	}
	bp3, err := n.breakpoint3p(f.Tx3p, f.Start3p)
	if err != nil {
		return err
	}
	key := breakpointPair{bp5, bp3}
	c := g.candidates[key]
	if c == nil {
		c = &Candidate{
			Partner5p: Partner{Tx: f.Tx5p, Start: f.Start5p, End: bp5},
			Partner3p: Partner{Tx: f.Tx3p, Start: bp3, End: f.End3p},
		}
		c.Name = candidateName(c.Key())
		g.candidates[key] = c
	}
	c.Partner5p.Start = minInt(c.Partner5p.Start, f.Start5p)
	c.Partner3p.End = maxInt(c.Partner3p.End, f.End3p)
	c.Partner5p.InnerDist = maxInt(c.Partner5p.InnerDist, bp5-f.End5p)
	c.Partner3p.InnerDist = maxInt(c.Partner3p.InnerDist, f.Start3p-bp3)
	c.Frags = append(c.Frags, EncompassingFrag{
		Name:    f.Name,
		NumHits: f.NumHits,
		Start5p: f.Start5p,
		End5p:   f.End5p,
		Start3p: f.Start3p,
		End3p:   f.End3p,
	})
	return nil
}

// flush emits the candidates of g ordered by (5' breakpoint, 3' breakpoint).
func (n *Nominator) flush(g *nominationGroup, w CandidateSink) error {
	keys := make([]breakpointPair, 0, len(g.candidates))
	for k := range g.candidates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bp5 != keys[j].bp5 {
			return keys[i].bp5 < keys[j].bp5
		}
		return keys[i].bp3 < keys[j].bp3
	})
	for _, k := range keys {
		c := g.candidates[k]
		c.WeightedCov = c.computeFragScores()
		if err := w.Write(c); err != nil {
			return err
		}
		n.stats.Candidates++
	}
	return nil
}

// Nominate reads fragments sorted by (tx5p, tx3p) and writes one candidate
// per distinct (tx5p, tx3p, 5' breakpoint, 3' breakpoint). A fragment that
// appears under several transcript pairs contributes its full 1/NumHits
// weight to each of them.
func (n *Nominator) Nominate(r *FragReader, w CandidateSink) error {
	var g *nominationGroup
	for {
		f, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n.stats.Fragments++
		if g == nil || f.Tx5p != g.tx5p || f.Tx3p != g.tx3p {
			if g != nil {
				if f.Tx5p < g.tx5p || (f.Tx5p == g.tx5p && f.Tx3p < g.tx3p) {
					return &UnsortedInputError{
						Path: r.path,
						Prev: fmt.Sprintf("%s,%s", g.tx5p, g.tx3p),
						Cur:  fmt.Sprintf("%s,%s (line %d)", f.Tx5p, f.Tx3p, r.line),
					}
				}
				if err := n.flush(g, w); err != nil {
					return err
				}
			}
			g = &nominationGroup{tx5p: f.Tx5p, tx3p: f.Tx3p, candidates: map[breakpointPair]*Candidate{}}
		}
		if err := n.add(g, f); err != nil {
			if err = n.stats.recordDrop("fragment "+f.Name, err); err != nil {
				return err
			}
		}
	}
	if g != nil {
		if err := n.flush(g, w); err != nil {
			return err
		}
	}
	log.Printf("nominate: %d fragments, %d candidates", n.stats.Fragments, n.stats.Candidates)
	return nil
}
