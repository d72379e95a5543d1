package memindex

import (
	"testing"

	"chromap/internal/model"
)

type fakeRef struct {
	seqs [][]byte
}

func (f *fakeRef) NumReferences() int              { return len(f.seqs) }
func (f *fakeRef) SequenceAt(refID uint32) []byte { return f.seqs[refID] }

func TestBuildFindsForwardMinimizer(t *testing.T) {
	ref := &fakeRef{seqs: [][]byte{[]byte("ACGTACGTACGTACGTACGTACGTACGTACGT")}}
	idx := Build(ref, 12, 3, 2)

	found := false
	for hash := range idx.freq {
		if idx.Frequency(hash) > 0 && len(idx.Lookup(hash)) > 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected Build to produce at least one indexed minimizer")
	}
}

func TestBuildProducesBothStrands(t *testing.T) {
	ref := &fakeRef{seqs: [][]byte{[]byte("ACGTACGTACGTACGTACGTACGTACGTACGT")}}
	idx := Build(ref, 12, 3, 1)

	var sawPositive, sawNegative bool
	for _, hits := range idx.hits {
		for _, h := range hits {
			if h.Strand == model.Positive {
				sawPositive = true
			} else {
				sawNegative = true
			}
		}
	}
	if !sawPositive {
		t.Fatalf("expected at least one positive-strand hit")
	}
	if !sawNegative {
		t.Fatalf("expected at least one negative-strand hit")
	}
}
