package chimera

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// openInput opens path for reading, decompressing gzip files. The returned
// closer must be called with a pointer to the caller's error; it records a
// close error there unless an error is already set.
func openInput(ctx context.Context, path string) (io.Reader, func(*error), error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	var (
		r  = io.Reader(in.Reader(ctx))
		gz *gzip.Reader
	)
	if fileio.DetermineType(path) == fileio.Gzip {
		if gz, err = gzip.NewReader(r); err != nil {
			_ = in.Close(ctx)
			return nil, nil, errors.E(err, "gzip", path)
		}
		r = gz
	}
	closer := func(errp *error) {
		e := errors.Once{}
		if gz != nil {
			e.Set(gz.Close())
		}
		e.Set(in.Close(ctx))
		if *errp == nil && e.Err() != nil {
			*errp = errors.E(e.Err(), "close", path)
		}
	}
	return r, closer, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WithInput opens path, decompressing gzip files, and calls fn on its
// contents. The file is closed when fn returns.
func WithInput(ctx context.Context, path string, fn func(in io.Reader) error) (err error) {
	in, closer, err := openInput(ctx, path)
	if err != nil {
		return err
	}
	defer closer(&err)
	return fn(in)
}
