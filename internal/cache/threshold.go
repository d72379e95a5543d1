package cache

// warmupReads is how many reads the run processes before the update
// prefix is allowed to shrink below the full batch: early on the cache
// is empty, so every batch should be offered in full regardless of the
// observed hit rate.
const warmupReads = 200_000

// GetUpdateThreshold returns the size of the prefix of the next batch
// whose minimizer/candidate history should be folded into the cache via
// Update. Early in a run (below warmupReads) it returns the full batch;
// afterward it shrinks proportionally to (1 - hit rate), scaled by
// tuningParam, since a high hit rate means most of the batch is already
// resident and re-offering it only adds update-phase contention for no
// benefit.
func (c *Cache) GetUpdateThreshold(batchSize int, totalReadsSeen uint64, isPairedEnd bool, tuningParam float64) uint32 {
	if totalReadsSeen < warmupReads {
		return uint32(batchSize)
	}

	scale := tuningParam * (1 - c.HitRate())
	if isPairedEnd {
		// a pair contributes minimizer history for two reads per
		// update slot, so halve the prefix to keep update-phase work
		// comparable to single-end runs at the same tuningParam.
		scale *= 0.5
	}

	threshold := float64(batchSize) * scale
	if min := float64(batchSize) / 20; threshold < min {
		threshold = min
	}
	if threshold > float64(batchSize) {
		threshold = float64(batchSize)
	}
	return uint32(threshold)
}
