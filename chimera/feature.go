package chimera

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Exon is a genomic half-open range, zero based.
type Exon struct {
	Start, End int
}

// TranscriptFeature describes one transcript of the gene model.
type TranscriptFeature struct {
	Name  string
	Gene  string
	Chrom string
	// Strand is '+' or '-'.
	Strand byte
	// Exons are sorted by genomic start and do not overlap.
	Exons []Exon
}

// Length returns the total exonic length.
func (f *TranscriptFeature) Length() int {
	n := 0
	for _, e := range f.Exons {
		n += e.End - e.Start
	}
	return n
}

// featureRow is one row of the transcript feature table. Exon coordinates
// are comma separated; a trailing comma is allowed.
type featureRow struct {
	Name       string `tsv:"tx_name"`
	Gene       string `tsv:"gene_name"`
	Chrom      string `tsv:"chrom"`
	Strand     string `tsv:"strand"`
	ExonStarts string `tsv:"exon_starts"`
	ExonEnds   string `tsv:"exon_ends"`
}

func parseIntList(s string) ([]int, error) {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	v := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(err, "position %d", i)
		}
		v[i] = n
	}
	return v, nil
}

// ParseTranscriptFeatures reads a transcript feature table. The header row
// must name the columns tx_name, gene_name, chrom, strand, exon_starts and
// exon_ends, in any order; other columns are ignored. path is used only in
// error messages.
func ParseTranscriptFeatures(in io.Reader, path string) ([]TranscriptFeature, error) {
	r := tsv.NewReader(in)
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	r.Comment = '#'
	var features []TranscriptFeature
	for line := 2; ; line++ {
		var row featureRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &MalformedRecordError{Path: path, Line: line, Err: err}
		}
		bad := func(err error) error {
			return &MalformedRecordError{Path: path, Line: line, Record: row.Name, Err: err}
		}
		f := TranscriptFeature{Name: row.Name, Gene: row.Gene, Chrom: row.Chrom}
		if row.Strand != "+" && row.Strand != "-" {
			return nil, bad(errors.Errorf("bad strand %q", row.Strand))
		}
		f.Strand = row.Strand[0]
		starts, err := parseIntList(row.ExonStarts)
		if err != nil {
			return nil, bad(errors.Wrap(err, "exon_starts"))
		}
		ends, err := parseIntList(row.ExonEnds)
		if err != nil {
			return nil, bad(errors.Wrap(err, "exon_ends"))
		}
		if len(starts) != len(ends) || len(starts) == 0 {
			return nil, bad(errors.Errorf("%d exon starts, %d exon ends", len(starts), len(ends)))
		}
		for i := range starts {
			if starts[i] < 0 || starts[i] >= ends[i] {
				return nil, bad(errors.Errorf("bad exon [%d,%d)", starts[i], ends[i]))
			}
			f.Exons = append(f.Exons, Exon{starts[i], ends[i]})
		}
		sort.Slice(f.Exons, func(i, j int) bool { return f.Exons[i].Start < f.Exons[j].Start })
		for i := 1; i < len(f.Exons); i++ {
			if f.Exons[i].Start < f.Exons[i-1].End {
				return nil, bad(errors.Errorf("overlapping exons at %d", f.Exons[i].Start))
			}
		}
		features = append(features, f)
	}
	return features, nil
}

// ReadTranscriptFeatures reads a transcript feature table from a file. Gzip
// input is detected from the file name.
func ReadTranscriptFeatures(ctx context.Context, path string) (features []TranscriptFeature, err error) {
	in, closer, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closer(&err)
	return ParseTranscriptFeatures(in, path)
}
