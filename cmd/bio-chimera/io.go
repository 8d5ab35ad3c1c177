package main

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/chimera/chimera"
	"github.com/grailbio/hts/bam"
)

// upToDate reports whether every output exists and is no older than every
// input. Any stat error makes the stage run.
func upToDate(ctx context.Context, outputs, inputs []string) bool {
	var newestInput, oldestOutput int64
	for i, path := range inputs {
		info, err := file.Stat(ctx, path)
		if err != nil {
			log.Debug.Printf("stat %s: %v", path, err)
			return false
		}
		if t := info.ModTime().UnixNano(); i == 0 || t > newestInput {
			newestInput = t
		}
	}
	for i, path := range outputs {
		info, err := file.Stat(ctx, path)
		if err != nil || info.Size() == 0 {
			return false
		}
		if t := info.ModTime().UnixNano(); i == 0 || t < oldestOutput {
			oldestOutput = t
		}
	}
	return len(outputs) > 0 && oldestOutput >= newestInput
}

// withOutput creates path, calls fn with its writer, and closes the file.
// The first error wins.
func withOutput(ctx context.Context, path string, fn func(w io.Writer) error) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	e := errors.Once{}
	e.Set(fn(out.Writer(ctx)))
	e.Set(out.Close(ctx))
	return e.Err()
}

// withBAM opens a BAM file and calls fn with its reader.
func withBAM(ctx context.Context, path string, fn func(r *bam.Reader) error) error {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "open", path)
	}
	e := errors.Once{}
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		e.Set(errors.E(err, "read", path))
	} else {
		e.Set(fn(r))
		e.Set(r.Close())
	}
	e.Set(in.Close(ctx))
	return e.Err()
}

func runCluster(ctx context.Context, inPath, clusterPath, outBAMPath string, opts chimera.Opts, firstID chimera.ClusterID) error {
	stats := chimera.Stats{}
	err := withBAM(ctx, inPath, func(r *bam.Reader) error {
		return withOutput(ctx, clusterPath, func(w io.Writer) error {
			cw := chimera.NewClusterWriter(w)
			run := func(out chimera.RecordWriter) error {
				nextID, err := chimera.ClusterDiscordantReads(r, inPath, cw, out, opts, firstID, &stats)
				if err != nil {
					return err
				}
				log.Printf("cluster: next cluster id %d", nextID)
				return cw.Flush()
			}
			if outBAMPath == "" {
				return run(nil)
			}
			return withOutput(ctx, outBAMPath, func(bw io.Writer) error {
				out, err := bam.NewWriter(bw, r.Header(), 1)
				if err != nil {
					return errors.E(err, "create", outBAMPath)
				}
				e := errors.Once{}
				e.Set(run(out))
				e.Set(out.Close())
				return e.Err()
			})
		})
	})
	log.Printf("cluster: stats: %+v", stats)
	return err
}

func readTranscriptMap(ctx context.Context, path string) (*chimera.TranscriptMap, error) {
	features, err := chimera.ReadTranscriptFeatures(ctx, path)
	if err != nil {
		return nil, err
	}
	tm, err := chimera.BuildTranscriptMap(features)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: %d transcripts in %d gene clusters", path, len(features), tm.NumClusters())
	return tm, nil
}

func runNominate(ctx context.Context, featurePath, fragPath, outPath string, opts chimera.Opts) error {
	tm, err := readTranscriptMap(ctx, featurePath)
	if err != nil {
		return err
	}
	stats := chimera.Stats{}
	err = chimera.WithInput(ctx, fragPath, func(in io.Reader) error {
		return withOutput(ctx, outPath, func(w io.Writer) error {
			cw := chimera.NewCandidateWriter(w)
			if err := chimera.NewNominator(tm, opts, &stats).Nominate(chimera.NewFragReader(in, fragPath), cw); err != nil {
				return err
			}
			return cw.Flush()
		})
	})
	log.Printf("nominate: stats: %+v", stats)
	return err
}

func runMergeSpanning(ctx context.Context, candidatePath, junctionPath, bamPath, outPath string, opts chimera.Opts) error {
	var jm chimera.JunctionMap
	if err := chimera.WithInput(ctx, junctionPath, func(in io.Reader) (err error) {
		jm, err = chimera.ReadJunctionMap(in, junctionPath)
		return err
	}); err != nil {
		return err
	}
	stats := chimera.Stats{}
	var reads map[string][]chimera.SpanningRead
	if err := withBAM(ctx, bamPath, func(r *bam.Reader) (err error) {
		reads, err = chimera.CollectSpanning(r, jm, opts, &stats)
		return err
	}); err != nil {
		return err
	}
	log.Printf("merge-spanning: %d of %d spanning reads accepted for %d candidates",
		stats.SpanningAccepted, stats.SpanningReads, len(reads))
	err := chimera.WithInput(ctx, candidatePath, func(in io.Reader) error {
		return withOutput(ctx, outPath, func(w io.Writer) error {
			cw := chimera.NewCandidateWriter(w)
			if err := chimera.MergeSpanningTable(chimera.NewCandidateReader(in, candidatePath), reads, cw); err != nil {
				return err
			}
			return cw.Flush()
		})
	})
	log.Printf("merge-spanning: stats: %+v", stats)
	return err
}

type filterArgs struct {
	featurePath   string
	bamPath       string
	indexPath     string
	candidatePath string
	outPath       string
	isizePath     string
	falsePosPath  string
}

func runFilter(ctx context.Context, args filterArgs, opts chimera.Opts) error {
	tm, err := readTranscriptMap(ctx, args.featurePath)
	if err != nil {
		return err
	}
	if args.isizePath != "" {
		isize, err := chimera.ReadInsertSizeStats(ctx, args.isizePath)
		if err != nil {
			return err
		}
		log.Printf("%s: %+v", args.isizePath, isize)
		opts.MedianInsertSize = int(isize.Median)
	}
	var falsePos chimera.FalsePositiveSet
	if args.falsePosPath != "" {
		if err := chimera.WithInput(ctx, args.falsePosPath, func(in io.Reader) (err error) {
			falsePos, err = chimera.ReadFalsePositives(in, args.falsePosPath)
			return err
		}); err != nil {
			return err
		}
	}
	var fetcher chimera.AlignmentFetcher
	if args.bamPath != "" {
		bf, err := chimera.OpenBAMFetcher(ctx, args.bamPath, args.indexPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := bf.Close(); err != nil {
				log.Error.Printf("close %s: %v", args.bamPath, err)
			}
		}()
		fetcher = bf
	}
	stats := chimera.Stats{}
	f := chimera.NewFilter(opts, tm, falsePos, fetcher, &stats)
	err = chimera.WithInput(ctx, args.candidatePath, func(in io.Reader) error {
		return withOutput(ctx, args.outPath, func(w io.Writer) error {
			cw := chimera.NewCandidateWriter(w)
			if err := f.Run(chimera.NewCandidateReader(in, args.candidatePath), cw); err != nil {
				return err
			}
			return cw.Flush()
		})
	})
	log.Printf("filter: stats: %+v", stats)
	return err
}
