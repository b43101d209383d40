// Package seedindex maps fixed-length seeds to the genome locations at
// which they (or their reverse complements) occur.
//
// The index is a read-only hash table physically sharded 256 ways using
// the upper 8 bits of farmhash(seed); within a shard a vanilla
// linear-probing table maps a seed to a range of a flat, per-shard
// location array. Hit lists are stored sorted strictly descending by
// location, which is the order the intersection walk consumes them in.
package seedindex

import (
	"math"
	"sort"
	"unsafe"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"golang.org/x/sys/unix"

	"github.com/grailbio/align/genome"
)

const (
	nIndexShard   = 256 // # of shards in the hash table.
	maxCollisions = 64  // max# of collisions allowed for a single lookup.
	entrySize     = unsafe.Sizeof(indexEntry{})
)

// indexEntry is one slot of a shard's hash table. A seed's hits occupy
// locs32[start:start+n] (or locs64) of the owning shard.
type indexEntry struct {
	seed  Seed
	start int64
	n     int32
	_     int32
}

const invalidSeed = Seed(math.MaxUint64)

type indexShard struct {
	nShift uint32 // == 64 - log2(table size)

	// The hash table is logically [size]indexEntry, created in an
	// anon-mapped region with madvise(MADV_HUGEPAGE) to reduce TLB misses.
	tableStart unsafe.Pointer
	tableLimit unsafe.Pointer
	mapped     []byte

	// Exactly one of locs32/locs64 is used, depending on the index width.
	locs32 []uint32
	locs64 []genome.Location
}

// Index is the seed-to-locations map for one genome. Lookups are safe for
// concurrent use by any number of readers.
type Index struct {
	seedLen int
	wide    bool // 64-bit locations
	genome  *genome.Genome
	shards  [nIndexShard]indexShard
}

func hashSeed(s Seed) uint64 {
	return farm.Hash64WithSeed(nil, uint64(s))
}

func shardOfSeed(s Seed) int {
	return int(hashSeed(s) >> 56)
}

// Build constructs the index for g with the given seed length.
// The location width is 32 bits unless the genome needs more.
func Build(g *genome.Genome, seedLen int) (*Index, error) {
	if seedLen < 1 || seedLen > 31 {
		return nil, errors.E("seedindex: seed length out of range", seedLen)
	}
	idx := &Index{
		seedLen: seedLen,
		wide:    g.CountOfBases() > math.MaxUint32,
		genome:  g,
	}

	// Collect per-shard seed -> ascending locations. The scan appends in
	// genome order; each list is reversed to descending at table-build
	// time.
	collected := make([]map[Seed][]genome.Location, nIndexShard)
	for i := range collected {
		collected[i] = map[Seed][]genome.Location{}
	}
	for _, contig := range g.Contigs() {
		bases := g.Substring(contig.Beginning, contig.Length)
		for p := 0; p+seedLen <= len(bases); p++ {
			seed, ok := MakeSeed(bases[p : p+seedLen])
			if !ok {
				continue
			}
			loc := contig.Beginning + genome.Location(p)
			shard := shardOfSeed(seed)
			collected[shard][seed] = append(collected[shard][seed], loc)
		}
	}

	err := traverse.Each(nIndexShard, func(shard int) error {
		return idx.initShard(shard, collected[shard])
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// initShard fills one shard from the collected seed map. Thread
// compatible; distinct shards may be initialized concurrently.
func (idx *Index) initShard(shard int, input map[Seed][]genome.Location) error {
	const (
		hugePageSize = 2 << 20 // size of Linux transparent hugetlb.
		loadFactor   = 4       // hashtable load factor
	)
	minSize := (len(input) + 1) * loadFactor
	size := 1
	shift := 0
	for size < minSize {
		size *= 2
		shift++
	}
	sizeShift := 64 - shift

	// Bypass the Go allocator so the table can sit on transparent
	// hugepages.
	tableData, err := unix.Mmap(-1, 0, size*int(entrySize)+hugePageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return errors.E(err, "seedindex: mmap")
	}
	if err := unix.Madvise(tableData, unix.MADV_HUGEPAGE); err != nil {
		return errors.E(err, "seedindex: madvise")
	}
	tableStart := ((uintptr(unsafe.Pointer(&tableData[0]))-1)/hugePageSize + 1) * hugePageSize
	tableLimit := tableStart + uintptr(size)*entrySize

	sh := &idx.shards[shard]
	sh.nShift = uint32(sizeShift)
	sh.tableStart = unsafe.Pointer(tableStart)
	sh.tableLimit = unsafe.Pointer(tableLimit)
	sh.mapped = tableData

	for i := 0; i < size; i++ {
		ent := (*indexEntry)(unsafe.Pointer(tableStart + entrySize*uintptr(i)))
		ent.seed = invalidSeed
	}

	// Deterministic iteration keeps rebuilds byte-identical.
	seeds := make([]Seed, 0, len(input))
	for seed := range input {
		seeds = append(seeds, seed)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })

	for _, seed := range seeds {
		locs := input[seed]
		sort.Slice(locs, func(i, j int) bool { return locs[i] > locs[j] })
		start := int64(len(sh.locs32)) + int64(len(sh.locs64))
		if idx.wide {
			sh.locs64 = append(sh.locs64, locs...)
		} else {
			for _, loc := range locs {
				sh.locs32 = append(sh.locs32, uint32(loc))
			}
		}

		// Skip the shard byte, then use the top remaining hash bits to pick
		// a bucket.
		probe := (hashSeed(seed) << 8) >> sh.nShift
		nCollisions := 0
		for {
			if nCollisions >= maxCollisions {
				log.Panicf("seedindex: shard %d: too many collisions for seed %v", shard, seed)
			}
			ent := sh.entry(probe, uint64(size))
			if ent.seed == invalidSeed {
				ent.seed = seed
				ent.start = start
				ent.n = int32(len(locs))
				break
			}
			probe++
			nCollisions++
		}
	}
	return nil
}

func (sh *indexShard) entry(probe uint64, size uint64) *indexEntry {
	p := unsafe.Pointer(uintptr(sh.tableStart) + uintptr(probe%size)*entrySize)
	return (*indexEntry)(p)
}

func (sh *indexShard) size() uint64 {
	return uint64((uintptr(sh.tableLimit) - uintptr(sh.tableStart)) / entrySize)
}

func (sh *indexShard) find(seed Seed) (start int64, n int32) {
	size := sh.size()
	probe := (hashSeed(seed) << 8) >> sh.nShift
	for i := 0; i < maxCollisions; i++ {
		ent := sh.entry(probe, size)
		if ent.seed == seed {
			return ent.start, ent.n
		}
		if ent.seed == invalidSeed {
			return 0, 0
		}
		probe++
	}
	return 0, 0
}

// SeedLength returns the seed length the index was built with.
func (idx *Index) SeedLength() int { return idx.seedLen }

// Has64BitLocations reports whether hit lists carry 64-bit locations.
func (idx *Index) Has64BitLocations() bool { return idx.wide }

// Genome returns the genome the index was built over.
func (idx *Index) Genome() *genome.Genome { return idx.genome }

// LookupSeed returns the 64-bit hit lists for seed and its reverse
// complement, each sorted strictly descending. The slices are owned by
// the index.
func (idx *Index) LookupSeed(seed Seed) (fwd, rc []genome.Location) {
	if !idx.wide {
		log.Panicf("seedindex: LookupSeed on a 32-bit index")
	}
	return idx.lookup64(seed), idx.lookup64(seed.ReverseComplement(idx.seedLen))
}

// LookupSeed32 is LookupSeed for a 32-bit index.
func (idx *Index) LookupSeed32(seed Seed) (fwd, rc []uint32) {
	if idx.wide {
		log.Panicf("seedindex: LookupSeed32 on a 64-bit index")
	}
	return idx.lookup32(seed), idx.lookup32(seed.ReverseComplement(idx.seedLen))
}

func (idx *Index) lookup64(seed Seed) []genome.Location {
	sh := &idx.shards[shardOfSeed(seed)]
	start, n := sh.find(seed)
	if n == 0 {
		return nil
	}
	return sh.locs64[start : start+int64(n)]
}

func (idx *Index) lookup32(seed Seed) []uint32 {
	sh := &idx.shards[shardOfSeed(seed)]
	start, n := sh.find(seed)
	if n == 0 {
		return nil
	}
	return sh.locs32[start : start+int64(n)]
}
