package main

// bio-chimera runs the post-alignment stages of chimeric transcript
// discovery. Each stage is a subcommand that reads the output of the
// previous one:
//
//   bio-chimera cluster discordant.bam clusters.txt
//   bio-chimera nominate genes.tsv discordant_frags.txt encompassing.txt
//   bio-chimera merge-spanning encompassing.txt junctions.txt spanning.bam spanning.txt
//   bio-chimera filter genes.tsv transcriptome.bam spanning.txt chimeras.txt
//
// With -resume, a stage is skipped when all its outputs are newer than all
// its inputs.

import (
	"fmt"
	"math"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/chimera/chimera"
	"v.io/x/lib/cmdline"
)

func newCmdCluster() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "cluster",
		Short:    "Cluster discordant alignments by locus, strand and orientation",
		ArgsName: "discordant.bam clusters.txt",
		Long: `
Cluster reads discordant alignments sorted by position, clusters overlapping
alignments separately per (strand, 5'/3' orientation), and writes one row per
cluster: ref start end id strand count orientation names.`,
	}
	opts := chimera.DefaultOpts
	cmd.Flags.IntVar(&opts.MaxGap, "max-gap", opts.MaxGap, "Max distance between alignments of one cluster")
	outBAM := cmd.Flags.String("out-bam", "", "If set, write the alignments tagged with their cluster id (XC) to this BAM file")
	firstID := cmd.Flags.Int64("first-id", 0, "Id of the first cluster")
	resume := cmd.Flags.Bool("resume", false, "Skip the stage if the outputs are up to date")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("cluster takes discordant.bam clusters.txt, but got %v", argv)
		}
		if *firstID < 0 || *firstID > math.MaxInt32 {
			return fmt.Errorf("-first-id %d must be in [0, %d]", *firstID, math.MaxInt32)
		}
		ctx := vcontext.Background()
		outputs := []string{argv[1]}
		if *outBAM != "" {
			outputs = append(outputs, *outBAM)
		}
		if *resume && upToDate(ctx, outputs, argv[:1]) {
			log.Printf("cluster: %v up to date, skipping", outputs)
			return nil
		}
		return runCluster(ctx, argv[0], argv[1], *outBAM, opts, chimera.ClusterID(*firstID))
	})
	return cmd
}

func newCmdNominate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "nominate",
		Short:    "Nominate encompassing chimera candidates from discordant read pairs",
		ArgsName: "genes.tsv discordant_frags.txt encompassing.txt",
		Long: `
Nominate reads discordant fragments sorted by (5' transcript, 3' transcript),
in the format "tx5p start5p end5p tx3p start3p end3p name num_hits", and
writes one candidate per distinct breakpoint pair.`,
	}
	opts := chimera.DefaultOpts
	cmd.Flags.IntVar(&opts.ExonJunctionTrim, "exon-junction-trim", opts.ExonJunctionTrim,
		"Breakpoints within this many bases of an exon boundary are moved to the boundary")
	resume := cmd.Flags.Bool("resume", false, "Skip the stage if the outputs are up to date")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("nominate takes genes.tsv discordant_frags.txt encompassing.txt, but got %v", argv)
		}
		ctx := vcontext.Background()
		if *resume && upToDate(ctx, argv[2:], argv[:2]) {
			log.Printf("nominate: %s up to date, skipping", argv[2])
			return nil
		}
		return runNominate(ctx, argv[0], argv[1], argv[2], opts)
	})
	return cmd
}

func newCmdMergeSpanning() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge-spanning",
		Short:    "Attach junction-spanning reads to chimera candidates",
		ArgsName: "encompassing.txt junctions.txt spanning.bam spanning.txt",
		Long: `
Merge-spanning reads reads aligned to candidate junction sequences and adds
those with sufficient anchors to their candidates. junctions.txt maps each
junction sequence to its candidate: "junction_ref candidate_name junction_pos".`,
	}
	opts := chimera.DefaultOpts
	cmd.Flags.IntVar(&opts.AnchorMin, "anchor-min", opts.AnchorMin, "Min bases aligned on each side of the junction")
	cmd.Flags.IntVar(&opts.AnchorMax, "anchor-max", opts.AnchorMax, "Anchors shorter than this are checked for mismatches")
	cmd.Flags.IntVar(&opts.AnchorMismatches, "anchor-mismatches", opts.AnchorMismatches, "Max mismatches within a short anchor")
	resume := cmd.Flags.Bool("resume", false, "Skip the stage if the outputs are up to date")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 4 {
			return fmt.Errorf("merge-spanning takes encompassing.txt junctions.txt spanning.bam spanning.txt, but got %v", argv)
		}
		ctx := vcontext.Background()
		if *resume && upToDate(ctx, argv[3:], argv[:3]) {
			log.Printf("merge-spanning: %s up to date, skipping", argv[3])
			return nil
		}
		return runMergeSpanning(ctx, argv[0], argv[1], argv[2], argv[3], opts)
	})
	return cmd
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Filter chimera candidates and keep the best isoform of each fusion",
		ArgsName: "genes.tsv transcriptome.bam candidates.txt chimeras.txt",
		Long: `
Filter applies, in order, the weighted coverage, inner distance, false
positive and wild-type isoform ratio filters, then keeps the best supported
candidates among those that join the same genomic breakpoints. The
transcriptome BAM must be indexed; pass "" to skip the isoform ratio filter.`,
	}
	opts := chimera.DefaultOpts
	cmd.Flags.Float64Var(&opts.MinWeightedUniqueFrags, "unique-frags", opts.MinWeightedUniqueFrags,
		"Min weighted unique fragments; multimapped fragments count fractionally")
	cmd.Flags.IntVar(&opts.MedianInsertSize, "median-isize", opts.MedianInsertSize, "Median fragment size")
	cmd.Flags.IntVar(&opts.MaxInsertSize, "max-isize", opts.MaxInsertSize, "Max inner distance; <= 0 disables the check")
	cmd.Flags.Float64Var(&opts.IsoformFraction, "isoform-fraction", opts.IsoformFraction,
		"Min ratio of chimeric to wild-type 5' transcript fragments")
	cmd.Flags.StringVar(&opts.FetchRefPrefix, "ref-prefix", opts.FetchRefPrefix,
		"Prefix of transcript reference names in the transcriptome BAM")
	isizeStats := cmd.Flags.String("isize-stats", "",
		"Insert size summary file, 'mean median mode std'. If set, its median overrides -median-isize")
	falsePos := cmd.Flags.String("false-pos", "", "File of known false positive chimeras, 'tx5p end5p tx3p start3p'")
	index := cmd.Flags.String("index", "", "Index of the transcriptome BAM. By default, bampath + .bai")
	resume := cmd.Flags.Bool("resume", false, "Skip the stage if the outputs are up to date")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 4 {
			return fmt.Errorf("filter takes genes.tsv transcriptome.bam candidates.txt chimeras.txt, but got %v", argv)
		}
		ctx := vcontext.Background()
		inputs := []string{argv[0], argv[2]}
		if argv[1] != "" {
			inputs = append(inputs, argv[1])
		}
		if *resume && upToDate(ctx, argv[3:], inputs) {
			log.Printf("filter: %s up to date, skipping", argv[3])
			return nil
		}
		return runFilter(ctx, filterArgs{
			featurePath:   argv[0],
			bamPath:       argv[1],
			indexPath:     *index,
			candidatePath: argv[2],
			outPath:       argv[3],
			isizePath:     *isizeStats,
			falsePosPath:  *falsePos,
		}, opts)
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-chimera",
			Short:    "Chimeric transcript discovery from discordant RNA-seq alignments",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCluster(),
				newCmdNominate(),
				newCmdMergeSpanning(),
				newCmdFilter(),
			},
		})
}
