package seed

import "testing"

func TestSketchDedupesAdjacentIdenticalMinimizers(t *testing.T) {
	s := NewSketcher(4, 3)
	out := s.Sketch([]byte("ACGTACGTACGTACGT"), nil)
	if len(out) == 0 {
		t.Fatalf("expected at least one minimizer, got none")
	}
	for i := 1; i < len(out); i++ {
		if out[i].Hash == out[i-1].Hash {
			t.Fatalf("adjacent minimizers should never repeat the same hash: index %d", i)
		}
	}
}

func TestSketchShorterThanKProducesNothing(t *testing.T) {
	s := NewSketcher(8, 3)
	out := s.Sketch([]byte("ACGT"), nil)
	if len(out) != 0 {
		t.Fatalf("expected no minimizers for a sequence shorter than k, got %d", len(out))
	}
}

func TestSketchRecordsOffsetAndStrand(t *testing.T) {
	s := NewSketcher(4, 1) // window of 1: every k-mer is its own minimizer unless hashes repeat
	out := s.Sketch([]byte("ACGTTGCA"), nil)
	for _, m := range out {
		if m.Strand() != 0 { // model.Positive is the zero value strand produced by Sketch
			t.Fatalf("Sketch should only ever emit positive-strand minimizers, got strand %d", m.Strand())
		}
		if int(m.Offset()) >= len("ACGTTGCA") {
			t.Fatalf("offset %d out of range", m.Offset())
		}
	}
}
