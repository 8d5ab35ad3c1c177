package chimera

import (
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// Junction is a junction sequence built for one candidate. Pos is the length
// of the 5' part of the sequence: bases [0, Pos) come from the 5' partner.
type Junction struct {
	Candidate string
	Pos       int
}

// JunctionMap maps junction sequence names to their candidates.
type JunctionMap map[string]Junction

type junctionRow struct {
	Ref       string
	Candidate string
	Pos       int
}

// ReadJunctionMap parses a headerless TSV with the columns
// "junction_ref candidate_name junction_pos".
func ReadJunctionMap(in io.Reader, path string) (JunctionMap, error) {
	r := tsv.NewReader(in)
	m := JunctionMap{}
	for line := 1; ; line++ {
		var row junctionRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				return m, nil
			}
			return nil, &MalformedRecordError{Path: path, Line: line, Err: err}
		}
		if _, ok := m[row.Ref]; ok {
			return nil, &MalformedRecordError{Path: path, Line: line, Record: row.Ref, Err: errors.New("duplicate junction")}
		}
		m[row.Ref] = Junction{Candidate: row.Candidate, Pos: row.Pos}
	}
}

// mismatchPositions returns the reference positions of the mismatched bases
// listed in an MD tag. Deleted bases are not mismatches.
func mismatchPositions(pos int, md string) ([]int, error) {
	var (
		mm      []int
		n       int
		deleted bool
	)
	for i := 0; i < len(md); i++ {
		ch := md[i]
		switch {
		case ch >= '0' && ch <= '9':
			n = n*10 + int(ch-'0')
			deleted = false
		case ch == '^':
			pos += n
			n = 0
			deleted = true
		case (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z'):
			pos += n
			n = 0
			if !deleted {
				mm = append(mm, pos)
			}
			pos++
		default:
			return nil, errors.Errorf("bad MD tag %q", md)
		}
	}
	return mm, nil
}

// AcceptSpanning checks a read aligned to a junction sequence whose 5' part
// is juncPos bases long. The read must align at least max(AnchorMin, 1)
// bases on both sides of the junction, and a side shorter than AnchorMax may
// hold at most AnchorMismatches mismatches. Mismatch positions come from the
// MD tag; without one, the NM edit distance is charged to every short side.
func AcceptSpanning(rec *sam.Record, juncPos int, opts Opts) (SpanningRead, bool, error) {
	s := SpanningRead{Name: rec.Name, NumHits: 1, Pos: rec.Pos, End: rec.End()}
	if aux := rec.AuxFields.Get(hitsTag); aux != nil {
		if n, ok := intValue(aux.Value()); ok && n > 0 {
			s.NumHits = n
		}
	}
	left, right := juncPos-s.Pos, s.End-juncPos
	minAnchor := maxInt(opts.AnchorMin, 1)
	if left < minAnchor || right < minAnchor {
		return s, false, nil
	}
	var (
		mm    []int
		useNM bool
	)
	if aux := rec.AuxFields.Get(mdTag); aux != nil && aux.Type() == 'Z' {
		var err error
		if mm, err = mismatchPositions(s.Pos, aux.Value().(string)); err != nil {
			return s, false, &MalformedRecordError{Record: rec.Name, Err: err}
		}
		s.Mismatches = len(mm)
	} else if aux := rec.AuxFields.Get(editTag); aux != nil {
		s.Mismatches, _ = intValue(aux.Value())
		useNM = true
	}
	count := func(start, end int) int {
		if useNM {
			return s.Mismatches
		}
		n := 0
		for _, p := range mm {
			if p >= start && p < end {
				n++
			}
		}
		return n
	}
	if left < opts.AnchorMax && count(s.Pos, juncPos) > opts.AnchorMismatches {
		return s, false, nil
	}
	if right < opts.AnchorMax && count(juncPos, s.End) > opts.AnchorMismatches {
		return s, false, nil
	}
	return s, true, nil
}

// CollectSpanning reads alignments against junction sequences and returns
// the accepted reads keyed by candidate name. Unmapped records are skipped;
// records on unknown junction sequences are logged, counted and skipped.
func CollectSpanning(r RecordReader, jm JunctionMap, opts Opts, stats *Stats) (map[string][]SpanningRead, error) {
	reads := map[string][]SpanningRead{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.Ref == nil || rec.Flags&sam.Unmapped != 0 {
			continue
		}
		stats.SpanningReads++
		j, ok := jm[rec.Ref.Name()]
		if !ok {
			if err := stats.recordDrop("spanning read "+rec.Name, &ReferenceLookupError{Kind: "junction", Name: rec.Ref.Name()}); err != nil {
				return nil, err
			}
			continue
		}
		s, ok, err := AcceptSpanning(rec, j.Pos, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			stats.SpanningAccepted++
			reads[j.Candidate] = append(reads[j.Candidate], s)
		}
	}
	return reads, nil
}

// MergeSpanning attaches spanning reads to c. It updates the number of
// distinct spanning start positions and adds 1/NumHits per read to the
// weighted coverage.
func MergeSpanning(c *Candidate, reads []SpanningRead) {
	if len(reads) == 0 {
		return
	}
	c.Spanning = append(c.Spanning, reads...)
	for _, s := range reads {
		c.WeightedCov += fragWeight(s.NumHits)
	}
	positions := make(map[int]struct{}, len(c.Spanning))
	for _, s := range c.Spanning {
		positions[s.Pos] = struct{}{}
	}
	c.UniqueSpanningPos = len(positions)
}

// MergeSpanningTable streams the candidate table from r to w, attaching the
// spanning reads collected for each candidate.
func MergeSpanningTable(r *CandidateReader, reads map[string][]SpanningRead, w CandidateSink) error {
	n, merged := 0, 0
	for {
		c, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n++
		if s := reads[c.Name]; len(s) > 0 {
			MergeSpanning(c, s)
			merged++
		}
		if err := w.Write(c); err != nil {
			return err
		}
	}
	log.Printf("merge-spanning: %d candidates, %d with spanning reads", n, merged)
	return nil
}
