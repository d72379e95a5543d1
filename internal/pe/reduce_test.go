package pe

import "testing"

func TestReduceOneDirectionWithinWindow(t *testing.T) {
	candidates1 := []uint64{100, 500, 900}
	candidates2 := []uint64{150, 600}

	f1, f2 := ReduceOneDirection(candidates1, candidates2, 100, nil, nil)

	if len(f1) != 2 || f1[0] != 100 || f1[1] != 500 {
		t.Fatalf("unexpected filtered1: %v", f1)
	}
	if len(f2) != 2 || f2[0] != 150 || f2[1] != 600 {
		t.Fatalf("unexpected filtered2: %v", f2)
	}
}

func TestReduceOneDirectionNoOverlap(t *testing.T) {
	candidates1 := []uint64{10}
	candidates2 := []uint64{10000}

	f1, f2 := ReduceOneDirection(candidates1, candidates2, 50, nil, nil)
	if len(f1) != 0 || len(f2) != 0 {
		t.Fatalf("expected no candidates to survive, got f1=%v f2=%v", f1, f2)
	}
}

func TestReduceDifferentReferenceSequencesNeverPair(t *testing.T) {
	// refID 0 position 5000 vs refID 1 position 10: packed positions
	// differ by far more than any plausible insert size, so the
	// two-pointer sweep must reject the pair even though "distance"
	// looks small if refID were ignored.
	candidates1 := []uint64{uint64(0)<<32 | 5000}
	candidates2 := []uint64{uint64(1)<<32 | 10}

	f1, f2 := ReduceOneDirection(candidates1, candidates2, 1000, nil, nil)
	if len(f1) != 0 || len(f2) != 0 {
		t.Fatalf("cross-reference pair should not survive: f1=%v f2=%v", f1, f2)
	}
}
