package seed

import (
	"testing"

	"chromap/internal/model"
)

type fakeIndex struct {
	freq map[uint64]int
	hits map[uint64][]model.IndexHit
}

func (f *fakeIndex) Frequency(hash uint64) int { return f.freq[hash] }
func (f *fakeIndex) Lookup(hash uint64) []model.IndexHit { return f.hits[hash] }

func TestGenerateClustersOverlappingHitsIntoOneCandidate(t *testing.T) {
	// Two minimizers at read offsets 0 and 10, both hitting the same
	// reference with a 10bp-consistent diagonal, should collapse into
	// a single positive-strand candidate once minNumSeedsRequired=2 is
	// met.
	const refID = uint32(3)
	m0 := model.Minimizer{Hash: 1, PackedPositionStrand: model.PackPositionStrand(0, model.Positive)}
	m1 := model.Minimizer{Hash: 2, PackedPositionStrand: model.PackPositionStrand(10, model.Positive)}

	idx := &fakeIndex{
		freq: map[uint64]int{1: 1, 2: 1},
		hits: map[uint64][]model.IndexHit{
			1: {{Packed: model.PackRefPosition(refID, 100), Strand: model.Positive}},
			2: {{Packed: model.PackRefPosition(refID, 110), Strand: model.Positive}},
		},
	}

	var res Result
	Generate(idx, []model.Minimizer{m0, m1}, Options{MinNumSeedsRequired: 2, MaxSeedFrequency: 10, ErrorThreshold: 3}, &res)

	if len(res.Positive) != 1 {
		t.Fatalf("expected 1 clustered candidate, got %d: %+v", len(res.Positive), res.Positive)
	}
	gotRefID, gotPos := model.UnpackRefPosition(res.Positive[0].Position)
	if gotRefID != refID || gotPos != 100 {
		t.Fatalf("candidate = (refID=%d, pos=%d), want (refID=%d, pos=100)", gotRefID, gotPos, refID)
	}
	if res.Negative != nil && len(res.Negative) != 0 {
		t.Fatalf("expected no negative-strand candidates, got %+v", res.Negative)
	}
}

func TestGenerateDropsClustersBelowMinSeeds(t *testing.T) {
	const refID = uint32(0)
	m0 := model.Minimizer{Hash: 1, PackedPositionStrand: model.PackPositionStrand(0, model.Positive)}

	idx := &fakeIndex{
		freq: map[uint64]int{1: 1},
		hits: map[uint64][]model.IndexHit{
			1: {{Packed: model.PackRefPosition(refID, 100), Strand: model.Positive}},
		},
	}

	var res Result
	Generate(idx, []model.Minimizer{m0}, Options{MinNumSeedsRequired: 2, MaxSeedFrequency: 10, ErrorThreshold: 3}, &res)

	if len(res.Positive) != 0 {
		t.Fatalf("a single hit should never satisfy minNumSeedsRequired=2, got %+v", res.Positive)
	}
}

func TestGenerateTracksRepetitiveSeedLength(t *testing.T) {
	m0 := model.Minimizer{Hash: 1, PackedPositionStrand: model.PackPositionStrand(0, model.Positive)}

	idx := &fakeIndex{freq: map[uint64]int{1: 1000}}

	var res Result
	Generate(idx, []model.Minimizer{m0}, Options{MinNumSeedsRequired: 1, MaxSeedFrequency: 10, ErrorThreshold: 3}, &res)

	if res.RepetitiveSeedLength == 0 {
		t.Fatalf("an over-frequent minimizer should contribute to RepetitiveSeedLength")
	}
	if len(res.Positive) != 0 {
		t.Fatalf("an over-frequent minimizer should never be looked up, got %+v", res.Positive)
	}
}

func TestResultResetClears(t *testing.T) {
	res := Result{Positive: []model.Candidate{{Position: 1}}, RepetitiveSeedLength: 5}
	res.Reset()
	if len(res.Positive) != 0 || len(res.Negative) != 0 || res.RepetitiveSeedLength != 0 {
		t.Fatalf("Reset did not clear Result: %+v", res)
	}
}
