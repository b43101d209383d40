package pairedend

// Opts configures an Aligner. The zero value is not usable; start from
// DefaultOpts.
type Opts struct {
	// MaxReadSize bounds the length of either mate. Longer reads are a
	// configuration error.
	MaxReadSize int
	// MaxHits is carried in the configuration but the aligner does not
	// read it; lookups are limited only by MaxBigHits.
	MaxHits int
	// MaxK is the largest edit distance considered a real alignment.
	MaxK int
	// NumSeeds fixes the number of seeds per read; 0 derives the count
	// from SeedCoverage.
	NumSeeds int
	// SeedCoverage is the target number of seeds covering each base when
	// NumSeeds == 0: maxSeeds = readLen * SeedCoverage / seedLen.
	SeedCoverage float64
	// MinSpacing and MaxSpacing bound the distance between the two ends
	// of an aligned pair.
	MinSpacing int
	MaxSpacing int
	// MaxBigHits: a seed whose hit list is at least this long is "too
	// popular" and skipped (counted against mapping quality).
	MaxBigHits int
	// ExtraSearchDepth widens scoring beyond the current best score so
	// that near-ties are found for mapping-quality purposes.
	ExtraSearchDepth int
	// MaxCandidatePoolSize bounds the per-call candidate arenas.
	// Exhausting a pool is fatal; raise this value.
	MaxCandidatePoolSize int
	// MaxSecondaryAlignmentsPerContig caps secondary results per contig
	// when > 0.
	MaxSecondaryAlignmentsPerContig int

	// NoUkkonen disables score-limit truncation during scoring.
	NoUkkonen bool
	// NoOrderedEvaluation scores candidates in discovery order instead of
	// best-possible-score order.
	NoOrderedEvaluation bool
	// NoTruncation treats every best-possible score as zero.
	NoTruncation bool
	// UseAffineGap rescores, with affine gap penalties, any location whose
	// edit distance exceeds GapOpenPenalty / (SubPenalty - GapExtendPenalty).
	UseAffineGap bool
	// IgnoreAlignmentAdjustmentsForOm skips the alignment adjuster when
	// post-processing results.
	IgnoreAlignmentAdjustmentsForOm bool

	// AltAwareness prefers non-ALT alignments unless an ALT alignment is
	// better by more than MaxScoreGapToPreferNonAltAlignment.
	AltAwareness                       bool
	MaxScoreGapToPreferNonAltAlignment int

	// Affine-gap scoring parameters.
	MatchReward      int
	SubPenalty       int
	GapOpenPenalty   int
	GapExtendPenalty int

	// ProbabilityOfAllPairsCutoff stops scoring once the running
	// probability sum guarantees a zero mapping quality and no secondary
	// results were requested. The value is an unnormalized sum; the
	// default is empirical.
	ProbabilityOfAllPairsCutoff float64
}

// DefaultOpts is a reasonable starting configuration for short-read
// genomes.
var DefaultOpts = Opts{
	MaxReadSize:                        400,
	MaxHits:                            16000,
	MaxK:                               8,
	NumSeeds:                           0,
	SeedCoverage:                       4.0,
	MinSpacing:                         50,
	MaxSpacing:                         1000,
	MaxBigHits:                         16000,
	ExtraSearchDepth:                   2,
	MaxCandidatePoolSize:               1 << 20,
	MaxSecondaryAlignmentsPerContig:    0,
	UseAffineGap:                       true,
	AltAwareness:                       true,
	MaxScoreGapToPreferNonAltAlignment: 3,
	MatchReward:                        1,
	SubPenalty:                         4,
	GapOpenPenalty:                     6,
	GapExtendPenalty:                   1,
	ProbabilityOfAllPairsCutoff:        4.9,
}
