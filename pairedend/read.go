package pairedend

// Read is one mate of a pair: bases plus Phred+33 qualities of equal
// length. Reads are not modified by the aligner.
type Read struct {
	Name string
	Seq  []byte
	Qual []byte
}

// Len returns the number of bases.
func (r *Read) Len() int { return len(r.Seq) }

var rcTranslationTable [256]byte

var nTable [256]byte

func init() {
	for i := range rcTranslationTable {
		rcTranslationTable[i] = 'N'
	}
	rcTranslationTable['A'] = 'T'
	rcTranslationTable['T'] = 'A'
	rcTranslationTable['C'] = 'G'
	rcTranslationTable['G'] = 'C'
	rcTranslationTable['N'] = 'N'
	nTable['N'] = 1
}

// readData is one direction of one mate during a call: forward reads
// alias the caller's buffers, reverse complements alias the aligner's
// scratch.
type readData struct {
	seq  []byte
	qual []byte
}

func (r *readData) len() int { return len(r.seq) }
