// bio-align-pe aligns paired-end FASTQ reads against a FASTA reference
// and writes SAM.
//
// Example:
//
//	bio-align-pe -reference ref.fa -r1 r1.fastq.gz -r2 r2.fastq.gz -output out.sam
package main

import (
	"bufio"
	"flag"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bio/encoding/fastq"
	"github.com/grailbio/hts/sam"
	gzip "github.com/klauspost/compress/gzip"

	"github.com/grailbio/align/genome"
	"github.com/grailbio/align/landauvishkin"
	"github.com/grailbio/align/pairedend"
	"github.com/grailbio/align/seedindex"
)

type alignFlags struct {
	reference string
	r1, r2    string
	output    string
	seedLen   int

	maxSecondary  int
	secondaryEdit int
}

const batchSize = 4096

type pairResult struct {
	primary   pairedend.PairedResult
	altResult pairedend.PairedResult
	secondary []pairedend.PairedResult
}

func main() {
	flags := alignFlags{}
	opts := pairedend.DefaultOpts

	flag.StringVar(&flags.reference, "reference", "", "Reference FASTA (may be gzipped)")
	flag.StringVar(&flags.r1, "r1", "", "R1 FASTQ (may be gzipped)")
	flag.StringVar(&flags.r2, "r2", "", "R2 FASTQ (may be gzipped)")
	flag.StringVar(&flags.output, "output", "", "Output SAM path (default stdout)")
	flag.IntVar(&flags.seedLen, "seed-len", 20, "Seed length for the index")
	flag.IntVar(&opts.MaxK, "max-k", opts.MaxK, "Max edit distance for an alignment")
	flag.IntVar(&opts.MinSpacing, "min-spacing", opts.MinSpacing, "Min distance between mates")
	flag.IntVar(&opts.MaxSpacing, "max-spacing", opts.MaxSpacing, "Max distance between mates")
	flag.IntVar(&opts.NumSeeds, "num-seeds", opts.NumSeeds, "Seeds per read (0 derives from -seed-coverage)")
	flag.Float64Var(&opts.SeedCoverage, "seed-coverage", opts.SeedCoverage, "Target seed coverage per base")
	flag.BoolVar(&opts.AltAwareness, "alt-awareness", opts.AltAwareness, "Prefer non-ALT alignments within the score gap")
	flag.IntVar(&flags.maxSecondary, "max-secondary", 0, "Max secondary alignments to report per pair")
	flag.IntVar(&flags.secondaryEdit, "om", -1, "Report secondaries within this edit distance of the best (-1 disables)")
	flag.Parse()

	if flags.reference == "" || flags.r1 == "" || flags.r2 == "" {
		flag.Usage()
		os.Exit(2)
	}

	start := time.Now()
	g, err := readReference(flags.reference)
	if err != nil {
		log.Fatalf("%s: %v", flags.reference, err)
	}
	log.Printf("Loaded %d contigs, %d bases in %v", g.NumContigs(), g.CountOfBases(), time.Since(start))

	start = time.Now()
	idx, err := seedindex.Build(g, flags.seedLen)
	if err != nil {
		log.Fatalf("building index: %v", err)
	}
	log.Printf("Built seed index (seed length %d) in %v", flags.seedLen, time.Since(start))

	out := io.Writer(os.Stdout)
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			log.Fatalf("%s: %v", flags.output, err)
		}
		defer f.Close() // nolint: errcheck
		bw := bufio.NewWriter(f)
		defer bw.Flush() // nolint: errcheck
		out = bw
	}

	header, refs := samHeader(g)
	w, err := sam.NewWriter(out, header, sam.FlagDecimal)
	if err != nil {
		log.Fatalf("creating SAM writer: %v", err)
	}

	r1, closeR1, err := openFastq(flags.r1)
	if err != nil {
		log.Fatalf("%s: %v", flags.r1, err)
	}
	defer closeR1() // nolint: errcheck
	r2, closeR2, err := openFastq(flags.r2)
	if err != nil {
		log.Fatalf("%s: %v", flags.r2, err)
	}
	defer closeR2() // nolint: errcheck

	nWorkers := runtime.NumCPU()
	aligners := make([]*pairedend.Aligner, nWorkers)
	for i := range aligners {
		aligners[i] = pairedend.NewAligner(idx, opts)
	}

	start = time.Now()
	nPairs := 0
	reads1 := make([]fastq.Read, batchSize)
	reads2 := make([]fastq.Read, batchSize)
	results := make([]pairResult, batchSize)
	for {
		n := 0
		for n < batchSize && r1.Scan(&reads1[n]) {
			if !r2.Scan(&reads2[n]) {
				log.Fatalf("R2 ends before R1: %v", fastq.ErrDiscordant)
			}
			n++
		}
		if n == 0 {
			break
		}
		err := traverse.Each(nWorkers, func(worker int) error {
			for i := worker; i < n; i += nWorkers {
				alignPair(aligners[worker], &reads1[i], &reads2[i], &results[i], flags)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("aligning: %v", err)
		}
		for i := 0; i < n; i++ {
			if err := writePair(w, g, refs, &reads1[i], &reads2[i], &results[i]); err != nil {
				log.Fatalf("writing SAM: %v", err)
			}
		}
		nPairs += n
	}
	elapsed := time.Since(start)
	log.Printf("Aligned %d pairs in %v (%.0f pairs/s)", nPairs, elapsed,
		float64(nPairs)/elapsed.Seconds())
	if err := r1.Err(); err != nil {
		log.Fatalf("%s: %v", flags.r1, err)
	}
	if err := r2.Err(); err != nil {
		log.Fatalf("%s: %v", flags.r2, err)
	}
}

func alignPair(a *pairedend.Aligner, r1, r2 *fastq.Read, result *pairResult, flags alignFlags) {
	read0 := &pairedend.Read{Name: readName(r1.ID), Seq: []byte(r1.Seq), Qual: []byte(r1.Qual)}
	read1 := &pairedend.Read{Name: readName(r2.ID), Seq: []byte(r2.Seq), Qual: []byte(r2.Qual)}

	bufSize := flags.maxSecondary
	for {
		buf := make([]pairedend.PairedResult, bufSize)
		n, ok := a.Align(read0, read1, &result.primary, &result.altResult,
			flags.secondaryEdit, buf, flags.maxSecondary)
		if ok {
			result.secondary = buf[:n]
			return
		}
		// Buffer too small; n is the size hint.
		bufSize = n
	}
}

func readName(id string) string {
	if i := strings.IndexByte(id, ' '); i >= 0 {
		id = id[:i]
	}
	return strings.TrimPrefix(id, "@")
}

func readReference(path string) (*genome.Genome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close() // nolint: errcheck
		r = zr
	}
	return genome.ReadFasta(r, pairedend.DefaultOpts.MaxReadSize+landauvishkin.MaxK)
}

func openFastq(path string) (*fastq.Scanner, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close() // nolint: errcheck
			return nil, nil, err
		}
		return fastq.NewScanner(zr, fastq.ID|fastq.Seq|fastq.Qual), f.Close, nil
	}
	return fastq.NewScanner(f, fastq.ID|fastq.Seq|fastq.Qual), f.Close, nil
}

func samHeader(g *genome.Genome) (*sam.Header, []*sam.Reference) {
	refs := make([]*sam.Reference, g.NumContigs())
	for i, contig := range g.Contigs() {
		ref, err := sam.NewReference(contig.Name, "", "", int(contig.Length), nil, nil)
		if err != nil {
			log.Fatalf("contig %s: %v", contig.Name, err)
		}
		refs[i] = ref
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		log.Fatalf("building SAM header: %v", err)
	}
	return header, refs
}

// writePair emits the primary records for both mates plus any
// supplementary ALT and secondary records.
func writePair(w *sam.Writer, g *genome.Genome, refs []*sam.Reference,
	r1, r2 *fastq.Read, result *pairResult) error {

	reads := [2]*fastq.Read{r1, r2}
	if err := writeResult(w, g, refs, reads, &result.primary, 0); err != nil {
		return err
	}
	if result.altResult.Status[0] != pairedend.NotFound {
		if err := writeResult(w, g, refs, reads, &result.altResult, sam.Supplementary); err != nil {
			return err
		}
	}
	for i := range result.secondary {
		if err := writeResult(w, g, refs, reads, &result.secondary[i], sam.Secondary); err != nil {
			return err
		}
	}
	return nil
}

func writeResult(w *sam.Writer, g *genome.Genome, refs []*sam.Reference,
	reads [2]*fastq.Read, result *pairedend.PairedResult, extraFlags sam.Flags) error {

	for whichRead := 0; whichRead < 2; whichRead++ {
		rec, err := samRecord(g, refs, reads, result, whichRead, extraFlags)
		if err != nil {
			return err
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func samRecord(g *genome.Genome, refs []*sam.Reference, reads [2]*fastq.Read,
	result *pairedend.PairedResult, whichRead int, extraFlags sam.Flags) (*sam.Record, error) {

	read := reads[whichRead]
	mate := 1 - whichRead

	seq := []byte(read.Seq)
	qual := make([]byte, len(read.Qual))
	for i := 0; i < len(read.Qual); i++ {
		q := int(read.Qual[i]) - 33
		if q < 0 {
			q = 0
		}
		qual[i] = byte(q)
	}

	flags := sam.Paired | extraFlags
	if whichRead == 0 {
		flags |= sam.Read1
	} else {
		flags |= sam.Read2
	}

	var ref, mateRef *sam.Reference
	pos, matePos := -1, -1
	var cigar sam.Cigar
	mapQ := byte(0)

	if result.Status[whichRead] == pairedend.NotFound {
		flags |= sam.Unmapped
	} else {
		contigNum := g.ContigNumAt(result.Location[whichRead])
		contig := g.ContigAt(result.Location[whichRead])
		ref = refs[contigNum]
		pos = int(result.Location[whichRead] - contig.Beginning)
		mapQ = byte(result.Mapq[whichRead])
		if result.Direction[whichRead] == pairedend.ReverseComplement {
			flags |= sam.Reverse
			seq = reverseComplement(seq)
			qual = reverseBytes(qual)
		}
		cigar = buildCigar(len(seq), result.BasesClippedBefore[whichRead], result.BasesClippedAfter[whichRead])
	}

	tLen := 0
	if result.Status[mate] == pairedend.NotFound {
		flags |= sam.MateUnmapped
	} else {
		mateContigNum := g.ContigNumAt(result.Location[mate])
		mateContig := g.ContigAt(result.Location[mate])
		mateRef = refs[mateContigNum]
		matePos = int(result.Location[mate] - mateContig.Beginning)
		if result.Direction[mate] == pairedend.ReverseComplement {
			flags |= sam.MateReverse
		}
		if ref == mateRef && ref != nil {
			tLen = matePos - pos
			if tLen >= 0 {
				tLen += len(reads[mate].Seq)
			} else {
				tLen -= len(read.Seq)
			}
			flags |= sam.ProperPair
		}
	}

	rec, err := sam.NewRecord(readName(read.ID), ref, mateRef, pos, matePos, tLen, mapQ, cigar, seq, qual, nil)
	if err != nil {
		return nil, err
	}
	rec.Flags = flags
	return rec, nil
}

func buildCigar(readLen, clippedBefore, clippedAfter int) sam.Cigar {
	var cigar sam.Cigar
	if clippedBefore > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, clippedBefore))
	}
	aligned := readLen - clippedBefore - clippedAfter
	cigar = append(cigar, sam.NewCigarOp(sam.CigarMatch, aligned))
	if clippedAfter > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, clippedAfter))
	}
	return cigar
}

func reverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, c := range seq {
		switch c {
		case 'A', 'a':
			c = 'T'
		case 'C', 'c':
			c = 'G'
		case 'G', 'g':
			c = 'C'
		case 'T', 't':
			c = 'A'
		default:
			c = 'N'
		}
		out[len(seq)-i-1] = c
	}
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-i-1] = c
	}
	return out
}
