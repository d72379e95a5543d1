package pe

import (
	"math/rand"
	"testing"

	"chromap/internal/model"
)

func mapping(refID, pos uint32, errs int32) model.DraftMapping {
	return model.DraftMapping{NumErrors: errs, PackedPosition: model.PackRefPosition(refID, pos)}
}

func TestGenerateOneDirectionPicksMinSumErrors(t *testing.T) {
	// read1 forward mappings, read2 reverse-complement mappings within
	// insert size; the second pair has a strictly lower sum of errors
	// and should become the sole best mapping.
	mappings1 := []model.DraftMapping{mapping(0, 1000, 2), mapping(0, 5000, 0)}
	mappings2 := []model.DraftMapping{mapping(0, 1200, 2), mapping(0, 5200, 0)}

	minSumErrors := 7 // 2*e+1 for e=3
	numBest := 0
	secondMin := minSumErrors
	numSecondBest := 0

	best := GenerateOneDirection(Positive, 100, 100, 50, 1000, mappings1, mappings2, nil,
		&minSumErrors, &numBest, &secondMin, &numSecondBest)

	if minSumErrors != 0 {
		t.Fatalf("expected min sum errors 0, got %d", minSumErrors)
	}
	if numBest != 1 {
		t.Fatalf("expected exactly one best mapping, got %d", numBest)
	}
	if len(best) == 0 {
		t.Fatalf("expected at least one recorded pair")
	}
}

func TestSelectReportIndicesDeterministic(t *testing.T) {
	rngA := rand.New(rand.NewSource(42))
	rngB := rand.New(rand.NewSource(42))

	a := SelectReportIndices(10, 3, rngA, nil)
	b := SelectReportIndices(10, 3, rngB, nil)

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected 3 indices, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same-seed reservoir sampling diverged at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestSelectReportIndicesUnderQuota(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	got := SelectReportIndices(2, 5, rng, nil)
	want := []int{0, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d indices, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d want %d", i, got[i], want[i])
		}
	}
}
