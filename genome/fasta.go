package genome

import (
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bio/encoding/fasta"
)

// altSuffix follows the GRCh38 naming convention for alternative-haplotype
// contigs, e.g. "chr6_GL000250v2_alt".
const altSuffix = "_alt"

// ReadFasta builds a Genome from FASTA data. Contigs appear in file
// order; names ending in "_alt" are marked as ALT contigs.
func ReadFasta(r io.Reader, padding int) (*Genome, error) {
	fa, err := fasta.New(r)
	if err != nil {
		return nil, errors.E(err, "reading reference FASTA")
	}
	b := NewBuilder(padding)
	for _, name := range fa.SeqNames() {
		n, err := fa.Len(name)
		if err != nil {
			return nil, errors.E(err, "contig", name)
		}
		seq, err := fa.Get(name, 0, n)
		if err != nil {
			return nil, errors.E(err, "contig", name)
		}
		b.AddContig(name, seq, strings.HasSuffix(name, altSuffix))
	}
	return b.Build(), nil
}
