/*Package chimera finds chimeric (fusion) transcripts in paired-end RNA-seq
  alignments, after the reads have been aligned to the transcriptome.

  The pipeline has four stages, each reading the sorted output of the
  previous one:

  - ClusterDiscordantReads groups discordant alignments into clusters per
    (strand, orientation) and tags every record with its cluster id.
  - Nominator builds encompassing candidates from discordant read pairs and
    scores them, sharing the weight of multimapped fragments.
  - CollectSpanning and MergeSpanningTable attach reads that align across
    the candidate junction sequences.
  - Filter drops weak candidates and keeps the best supported isoform pair
    of each fusion.

  Errors that invalidate a single candidate (CoordinateOutOfRangeError,
  ReferenceLookupError) drop that candidate and are counted in Stats. Other
  errors, including MalformedRecordError and UnsortedInputError, abort the
  stage.
*/
package chimera
