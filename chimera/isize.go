package chimera

import (
	"context"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// InsertSizeStats summarizes the fragment length distribution of a library.
// It is estimated upstream from a sample of concordant pairs.
type InsertSizeStats struct {
	Mean   float64
	Median float64
	Mode   float64
	Std    float64
}

// ParseInsertSizeStats reads a one-row, headerless TSV with the columns
// "mean median mode std".
func ParseInsertSizeStats(in io.Reader, path string) (InsertSizeStats, error) {
	var s InsertSizeStats
	r := tsv.NewReader(in)
	if err := r.Read(&s); err != nil {
		if err == io.EOF {
			err = errors.New("empty file")
		}
		return s, &MalformedRecordError{Path: path, Line: 1, Err: err}
	}
	if s.Median < 0 || s.Std < 0 {
		return s, &MalformedRecordError{Path: path, Line: 1, Err: errors.Errorf("bad insert size stats %+v", s)}
	}
	return s, nil
}

// ReadInsertSizeStats reads the insert size summary file at path.
func ReadInsertSizeStats(ctx context.Context, path string) (s InsertSizeStats, err error) {
	in, closer, err := openInput(ctx, path)
	if err != nil {
		return s, err
	}
	defer closer(&err)
	return ParseInsertSizeStats(in, path)
}
