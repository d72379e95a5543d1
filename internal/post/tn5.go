package post

import "chromap/internal/model"

// ApplyTn5ShiftPairedEnd applies the Tn5 transposase insertion-site
// correction to every paired-end record in mappingsOnDiffRefSeqs,
// exactly as ApplyTn5ShiftOnPairedEndMapping: Tn5 inserts 9bp apart on
// the two strands it cuts, so the +4/-4 (5' ends) and -9/-5 (fragment
// and negative-strand alignment lengths) constants recenter the
// reported fragment on the actual transposase footprint.
func ApplyTn5ShiftPairedEnd(mappingsOnDiffRefSeqs [][]*model.MappingRecord) uint64 {
	var shifted uint64
	for _, bucket := range mappingsOnDiffRefSeqs {
		for _, m := range bucket {
			m.FragStart += 4
			m.PosAlnLen -= 4
			m.FragLen -= 9
			m.NegAlnLen -= 5
			shifted++
		}
	}
	return shifted
}

// ApplyTn5ShiftSingleEnd applies the single-end variant of the Tn5
// shift, exactly as ApplyTn5ShiftOnSingleEndMapping: which fields move
// depends on the strand bit packed into Mapq's low bit, since a
// single-end read only ever sees one of the two cut sites directly.
func ApplyTn5ShiftSingleEnd(mappingsOnDiffRefSeqs [][]*model.MappingRecord) uint64 {
	var shifted uint64
	for _, bucket := range mappingsOnDiffRefSeqs {
		for _, m := range bucket {
			if m.Strand() == model.Negative {
				m.FragStart += 4
				m.FragLen -= 4
			} else {
				m.FragLen -= 5
			}
			shifted++
		}
	}
	return shifted
}
