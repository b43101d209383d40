package seedindex

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/align/genome"
)

func TestMakeSeed(t *testing.T) {
	s, ok := MakeSeed([]byte("ACGT"))
	require.True(t, ok)
	assert.Equal(t, Seed(0x1b), s) // 00 01 10 11
	assert.Equal(t, "ACGT", s.String(4))

	_, ok = MakeSeed([]byte("ACNT"))
	assert.False(t, ok)
}

func TestReverseComplement(t *testing.T) {
	s, _ := MakeSeed([]byte("AACGT"))
	assert.Equal(t, "ACGTT", s.ReverseComplement(5).String(5))

	// Palindromic seed is its own reverse complement.
	p, _ := MakeSeed([]byte("ACGT"))
	assert.Equal(t, p, p.ReverseComplement(4))
}

func buildTestIndex(t *testing.T, seq string, seedLen int) (*Index, *genome.Genome) {
	b := genome.NewBuilder(64)
	b.AddContig("chr1", seq, false)
	g := b.Build()
	idx, err := Build(g, seedLen)
	require.NoError(t, err)
	return idx, g
}

func TestLookup(t *testing.T) {
	// GATC appears at offsets 0, 6 and 12; its reverse complement is
	// itself, so the RC list matches the forward list.
	idx, g := buildTestIndex(t, "GATCAAGATCTTGATC", 4)
	beg := g.Contigs()[0].Beginning

	seed, ok := MakeSeed([]byte("GATC"))
	require.True(t, ok)
	fwd, rc := idx.LookupSeed32(seed)
	require.Len(t, fwd, 3)
	assert.Equal(t, []uint32{uint32(beg + 12), uint32(beg + 6), uint32(beg)}, fwd)
	assert.Equal(t, fwd, rc)

	// AAGA appears once; its reverse complement TCTT appears once, at a
	// different position.
	seed, _ = MakeSeed([]byte("AAGA"))
	fwd, rc = idx.LookupSeed32(seed)
	require.Len(t, fwd, 1)
	assert.Equal(t, uint32(beg+4), fwd[0])
	require.Len(t, rc, 1)
	assert.Equal(t, uint32(beg+8), rc[0])

	// Absent seed.
	seed, _ = MakeSeed([]byte("GGGG"))
	fwd, rc = idx.LookupSeed32(seed)
	assert.Empty(t, fwd)
	assert.Empty(t, rc)
}

func TestLookupListsDescend(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var sb strings.Builder
	for i := 0; i < 8192; i++ {
		sb.WriteByte("ACGT"[r.Intn(4)])
	}
	seq := sb.String()
	idx, _ := buildTestIndex(t, seq, 8)

	for trial := 0; trial < 256; trial++ {
		at := r.Intn(len(seq) - 8)
		seed, ok := MakeSeed([]byte(seq[at : at+8]))
		require.True(t, ok)
		fwd, rc := idx.LookupSeed32(seed)
		require.NotEmpty(t, fwd)
		for _, hits := range [][]uint32{fwd, rc} {
			for i := 1; i < len(hits); i++ {
				assert.True(t, hits[i] < hits[i-1], "hit lists must descend strictly")
			}
		}
	}
}

func TestSeedsWithNsAreNotIndexed(t *testing.T) {
	idx, _ := buildTestIndex(t, "ACGTNACGT", 4)
	seed, _ := MakeSeed([]byte("ACGT"))
	fwd, _ := idx.LookupSeed32(seed)
	// Only the two windows that avoid the N.
	assert.Len(t, fwd, 2)
}

func TestIndexWidth(t *testing.T) {
	idx, _ := buildTestIndex(t, "ACGTACGTACGT", 4)
	assert.False(t, idx.Has64BitLocations())
	assert.Equal(t, 4, idx.SeedLength())
}
