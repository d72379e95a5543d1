package post

import (
	"chromap/internal/model"

	"github.com/rdleal/intervalst/interval"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// multiMappingMapqThreshold is the "high-bit" MAPQ cutoff below which a
// record is treated as a read that needs multi-mapping allocation
// rather than a confident unique placement.
const multiMappingMapqThreshold = 30

func cmpInt32(x, y int32) int { return int(x - y) }

// Allocator builds, once per reference sequence, an augmented interval
// tree over every uniquely-mapped fragment (mapq >= threshold), then
// resolves each multi-mapped read's placement candidates into overlap
// counts via AllIntersections.
type Allocator struct {
	tree *interval.SearchTree[struct{}, int32]
	rng  *rand.Rand
}

// NewAllocator builds an Allocator from uniqueMappings (already
// deduped, mapq >= multiMappingMapqThreshold), indexing each fragment's
// [fragStart, fragStart+fragLen) interval, and seeds its sampler from
// seed so reruns with the same seed reproduce the same allocations.
func NewAllocator(uniqueMappings []*model.MappingRecord, seed uint64) *Allocator {
	t := interval.NewSearchTree[struct{}, int32](cmpInt32)
	for _, m := range uniqueMappings {
		start := int32(m.FragStart)
		end := int32(m.FragStart + m.FragLen)
		t.Insert(start, end, struct{}{})
	}
	return &Allocator{
		tree: t,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// IsMultiMapped reports whether rec is a multi-mapping candidate that
// needs allocation rather than direct reporting.
func IsMultiMapped(rec *model.MappingRecord) bool {
	return rec.MapqValue() < multiMappingMapqThreshold
}

// CountOverlaps returns the number of unique mappings whose interval
// overlaps [fragStart-dist, fragStart+fragLen+dist).
func (a *Allocator) CountOverlaps(fragStart, fragLen uint32, dist int32) int {
	lo := int32(fragStart) - dist
	hi := int32(fragStart+fragLen) + dist
	hits, _ := a.tree.AllIntersections(lo, hi)
	return len(hits)
}

// Allocate picks one of candidates (every placement a multi-mapped
// read verified to) proportional to its overlap count with the
// uniquely-mapped background, sampling via gonum's weighted-without-
// replacement sampler the way the original samples from a discrete
// distribution over overlap counts. It returns the chosen index, or
// false if every candidate had zero overlap (the read is dropped from
// allocation and counted in Stats.NumMultiMappingDropped).
func (a *Allocator) Allocate(candidates []*model.MappingRecord, dist int32) (int, bool) {
	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		w := float64(a.CountOverlaps(c.FragStart, c.FragLen, dist))
		weights[i] = w
		total += w
	}
	if total == 0 {
		return 0, false
	}

	w := sampleuv.NewWeighted(weights, a.rng)
	idx, ok := w.Take()
	if !ok {
		return 0, false
	}
	return idx, true
}
