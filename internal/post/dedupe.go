package post

import "chromap/internal/model"

// Dedupe collapses PCR duplicates in a single already-sorted (by
// model.Less) reference-sequence bucket, keeping the first record of
// each EqualForDedupe run. It returns the deduplicated slice (aliasing
// bucket's backing array) and the number of records removed.
func Dedupe(bucket []*model.MappingRecord) ([]*model.MappingRecord, uint64) {
	if len(bucket) == 0 {
		return bucket, 0
	}

	out := bucket[:1]
	var removed uint64
	for i := 1; i < len(bucket); i++ {
		if model.EqualForDedupe(bucket[i], out[len(out)-1]) {
			removed++
			continue
		}
		out = append(out, bucket[i])
	}
	return out, removed
}

// DedupeAll runs Dedupe over every reference sequence's bucket,
// replacing each in place, and returns the total number of duplicates
// removed across all of them.
func DedupeAll(mappingsOnDiffRefSeqs [][]*model.MappingRecord) uint64 {
	var total uint64
	for i, bucket := range mappingsOnDiffRefSeqs {
		deduped, removed := Dedupe(bucket)
		mappingsOnDiffRefSeqs[i] = deduped
		total += removed
	}
	return total
}
