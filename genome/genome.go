// Package genome holds an in-memory reference genome: the concatenated
// contig bases plus the contig table used to translate flat genome
// locations back to (contig, offset) coordinates.
//
// Contigs are separated by runs of lowercase 'n' padding so that a read
// aligned near a contig end scores mismatches against padding instead of
// silently continuing into the next contig.
package genome

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
)

// Location is an offset into the concatenated reference. Locations are
// totally ordered; a larger Location is further along the genome.
type Location int64

// InvalidLocation is a sentinel that compares greater than every real
// location.
const InvalidLocation Location = math.MaxInt64

// Contig describes one reference sequence.
type Contig struct {
	Name string
	// Beginning is the location of the contig's first base.
	Beginning Location
	// Length is the number of real (unpadded) bases.
	Length int64
	// ALT marks an alternative-haplotype contig.
	ALT bool
}

// Genome is an immutable reference. All methods are safe for concurrent
// use.
type Genome struct {
	bases   []byte
	contigs []Contig
	padding int
}

// A Builder accumulates contigs and produces a Genome. Not thread safe.
type Builder struct {
	padding int
	bases   []byte
	contigs []Contig
}

// NewBuilder returns a Builder that separates contigs (and precedes the
// first one) with the given number of 'n' padding bases. The padding must
// be at least as long as any substring the aligner will ask for past a
// contig end.
func NewBuilder(padding int) *Builder {
	b := &Builder{padding: padding}
	b.pad()
	return b
}

func (b *Builder) pad() {
	for i := 0; i < b.padding; i++ {
		b.bases = append(b.bases, 'n')
	}
}

// AddContig appends one contig. Bases are uppercased; anything outside
// ACGT becomes 'N'.
func (b *Builder) AddContig(name string, seq string, alt bool) {
	b.contigs = append(b.contigs, Contig{
		Name:      name,
		Beginning: Location(len(b.bases)),
		Length:    int64(len(seq)),
		ALT:       alt,
	})
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		switch c {
		case 'a':
			c = 'A'
		case 'c':
			c = 'C'
		case 'g':
			c = 'G'
		case 't':
			c = 'T'
		case 'A', 'C', 'G', 'T':
		default:
			c = 'N'
		}
		b.bases = append(b.bases, c)
	}
	b.pad()
}

// Build returns the finished Genome. The Builder must not be used again.
func (b *Builder) Build() *Genome {
	if len(b.contigs) == 0 {
		log.Panicf("genome: no contigs")
	}
	return &Genome{bases: b.bases, contigs: b.contigs, padding: b.padding}
}

// CountOfBases returns the total length of the concatenated reference,
// padding included.
func (g *Genome) CountOfBases() int64 { return int64(len(g.bases)) }

// NumContigs returns the number of contigs.
func (g *Genome) NumContigs() int { return len(g.contigs) }

// Contigs returns the contig table, ordered by Beginning.
func (g *Genome) Contigs() []Contig { return g.contigs }

// Padding returns the number of 'n' bases between contigs.
func (g *Genome) Padding() int { return g.padding }

// Substring returns n bases starting at loc, or nil if the range leaves
// the genome. The returned slice aliases the genome and must not be
// modified.
func (g *Genome) Substring(loc Location, n int64) []byte {
	if loc < 0 || n < 0 || int64(loc)+n > int64(len(g.bases)) {
		return nil
	}
	return g.bases[loc : int64(loc)+n]
}

// ContigNumAt returns the index of the contig containing loc, or -1 if
// loc precedes the first contig. Padding after a contig maps to that
// contig.
func (g *Genome) ContigNumAt(loc Location) int {
	i := sort.Search(len(g.contigs), func(i int) bool {
		return g.contigs[i].Beginning > loc
	})
	return i - 1
}

// ContigAt returns the contig containing loc, or nil.
func (g *Genome) ContigAt(loc Location) *Contig {
	i := g.ContigNumAt(loc)
	if i < 0 {
		return nil
	}
	return &g.contigs[i]
}

// IsALT reports whether loc falls on an alternative-haplotype contig.
func (g *Genome) IsALT(loc Location) bool {
	c := g.ContigAt(loc)
	return c != nil && c.ALT
}
