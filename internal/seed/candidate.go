package seed

import (
	"sort"

	"chromap/internal/model"
)

// Index is the narrow view of the external minimizer index the
// candidate generator needs: hit lookup plus per-seed frequency so
// callers can apply a seed-frequency cap without paging in the full hit
// list for ultra-frequent seeds.
type Index interface {
	Frequency(hash uint64) int
	Lookup(hash uint64) []model.IndexHit
}

// Options bundles the thresholds Generate needs.
type Options struct {
	MinNumSeedsRequired int
	MaxSeedFrequency    int
	ErrorThreshold       int
}

// Result holds the candidate generator's output for one read. Vectors
// are reused across reads (clear-not-free) by calling Reset.
type Result struct {
	Positive []model.Candidate
	Negative []model.Candidate
	// RepetitiveSeedLength aggregates the read-span covered by
	// minimizers whose frequency exceeded MaxSeedFrequency, used later
	// to penalize MAPQ.
	RepetitiveSeedLength int

	posAnchors []anchor
	negAnchors []anchor
}

type anchor struct {
	position uint64
	readSpan int
}

// Reset clears the result for reuse on the next read.
func (r *Result) Reset() {
	r.Positive = r.Positive[:0]
	r.Negative = r.Negative[:0]
	r.RepetitiveSeedLength = 0
	r.posAnchors = r.posAnchors[:0]
	r.negAnchors = r.negAnchors[:0]
}

// Generate clusters index hits for the given minimizers into candidate
// reference positions.
func Generate(idx Index, minimizers []model.Minimizer, opt Options, out *Result) {
	for _, m := range minimizers {
		freq := idx.Frequency(m.Hash)
		if freq == 0 {
			continue
		}
		if freq > opt.MaxSeedFrequency {
			out.RepetitiveSeedLength += kmerSpanEstimate
			continue
		}

		offset := m.Offset()
		for _, hit := range idx.Lookup(m.Hash) {
			refID, refPos := model.UnpackRefPosition(hit.Packed)
			var anchorPos uint32
			if refPos >= offset {
				anchorPos = refPos - offset
			} else {
				anchorPos = 0
			}
			packed := model.PackRefPosition(refID, anchorPos)

			if hit.Strand == model.Positive {
				out.posAnchors = append(out.posAnchors, anchor{position: packed})
			} else {
				out.negAnchors = append(out.negAnchors, anchor{position: packed})
			}
		}
	}

	clusterWindow := uint64(opt.ErrorThreshold * 2)
	out.Positive = cluster(out.posAnchors, clusterWindow, opt.MinNumSeedsRequired, out.Positive)
	out.Negative = cluster(out.negAnchors, clusterWindow, opt.MinNumSeedsRequired, out.Negative)
}

// kmerSpanEstimate approximates the read-span a single over-frequent
// minimizer occupies, at k-mer granularity.
const kmerSpanEstimate = 1

// cluster sorts anchors and emits one Candidate per maximal run of
// anchors within window of each other, keeping runs whose size meets
// minCount.
func cluster(anchors []anchor, window uint64, minCount int, out []model.Candidate) []model.Candidate {
	if len(anchors) == 0 {
		return out[:0]
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].position < anchors[j].position })

	out = out[:0]
	start := 0
	for i := 1; i <= len(anchors); i++ {
		if i < len(anchors) && anchors[i].position-anchors[start].position <= window {
			continue
		}
		count := i - start
		if count >= minCount {
			// representative position: the last (largest) anchor in
			// the cluster.
			out = append(out, model.Candidate{
				Position: anchors[i-1].position,
				Count:    uint32(count),
			})
		}
		start = i
	}
	return out
}
