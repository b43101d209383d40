package genome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGenome() *Genome {
	b := NewBuilder(100)
	b.AddContig("chr1", "ACGTACGTAC", false)
	b.AddContig("chr2", "ttggccaan!", false)
	b.AddContig("chr2_alt", "GGGG", true)
	return b.Build()
}

func TestLayout(t *testing.T) {
	g := buildTestGenome()
	require.Equal(t, 3, g.NumContigs())

	contigs := g.Contigs()
	assert.Equal(t, "chr1", contigs[0].Name)
	assert.Equal(t, Location(100), contigs[0].Beginning)
	assert.Equal(t, int64(10), contigs[0].Length)
	assert.Equal(t, Location(210), contigs[1].Beginning)
	assert.Equal(t, Location(320), contigs[2].Beginning)
	assert.Equal(t, int64(100+10+100+10+100+4+100), g.CountOfBases())
}

func TestSubstring(t *testing.T) {
	g := buildTestGenome()
	assert.Equal(t, "ACGTACGTAC", string(g.Substring(100, 10)))
	// Bases are uppercased, non-ACGT become N.
	assert.Equal(t, "TTGGCCAANN", string(g.Substring(210, 10)))
	// Reading past a contig end lands in padding.
	assert.Equal(t, "ACnn", string(g.Substring(108, 4)))
	// Out of the genome entirely.
	assert.Nil(t, g.Substring(-1, 4))
	assert.Nil(t, g.Substring(Location(g.CountOfBases()-5), 10))
}

func TestContigLookup(t *testing.T) {
	g := buildTestGenome()
	assert.Equal(t, -1, g.ContigNumAt(50)) // leading padding
	assert.Equal(t, 0, g.ContigNumAt(100))
	assert.Equal(t, 0, g.ContigNumAt(150)) // trailing padding maps back
	assert.Equal(t, 1, g.ContigNumAt(210))
	assert.Equal(t, 2, g.ContigNumAt(325))
	assert.Equal(t, "chr2_alt", g.ContigAt(325).Name)
	assert.Nil(t, g.ContigAt(0))
}

func TestALT(t *testing.T) {
	g := buildTestGenome()
	assert.False(t, g.IsALT(105))
	assert.True(t, g.IsALT(325))
	assert.False(t, g.IsALT(10)) // padding
}

func TestReadFasta(t *testing.T) {
	fa := ">chr1 some description\nACGTACGT\nACGT\n>chr9_alt\nGGGGCCCC\n"
	g, err := ReadFasta(strings.NewReader(fa), 64)
	require.NoError(t, err)
	require.Equal(t, 2, g.NumContigs())
	assert.Equal(t, "chr1", g.Contigs()[0].Name)
	assert.Equal(t, int64(12), g.Contigs()[0].Length)
	assert.Equal(t, "ACGTACGTACGT", string(g.Substring(g.Contigs()[0].Beginning, 12)))
	assert.True(t, g.Contigs()[1].ALT)
	assert.False(t, g.Contigs()[0].ALT)
}
