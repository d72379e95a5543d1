package barcode

import (
	"testing"

	"github.com/shenwei356/kmers"
)

func newTestCorrector(t *testing.T, whitelistSeqs []string, abundances []uint64) *Corrector {
	t.Helper()
	c := &Corrector{
		Length:                         len(whitelistSeqs[0]),
		CorrectionErrorThreshold:       1,
		CorrectionProbabilityThreshold: 0.9,
		abundance:                      make(map[uint64]uint64),
	}
	for i, seq := range whitelistSeqs {
		code, err := kmers.Encode([]byte(seq))
		if err != nil {
			t.Fatalf("encode %q: %v", seq, err)
		}
		c.abundance[code] = abundances[i]
		c.total += abundances[i]
	}
	return c
}

func TestCorrectExactMatch(t *testing.T) {
	c := newTestCorrector(t, []string{"ACGTACGT"}, []uint64{100})
	_, status := c.Correct([]byte("ACGTACGT"), nil)
	if status != Exact {
		t.Fatalf("expected Exact, got %v", status)
	}
}

func TestCorrectSingleSubstitution(t *testing.T) {
	c := newTestCorrector(t, []string{"ACGTACGT"}, []uint64{1000})
	quals := []byte{40, 40, 40, 40, 40, 40, 40, 40}
	// one base off from the sole whitelist entry
	code, status := c.Correct([]byte("ACGTACGA"), quals)
	if status != Corrected {
		t.Fatalf("expected Corrected, got %v", status)
	}
	want, _ := kmers.Encode([]byte("ACGTACGT"))
	if code != want {
		t.Fatalf("corrected to the wrong whitelist entry")
	}
}

func TestCorrectAmbiguousDrops(t *testing.T) {
	// two whitelist entries equally one substitution away and equally
	// abundant: neither posterior share clears the threshold.
	c := newTestCorrector(t, []string{"AAAAAAAA", "CAAAAAAA"}, []uint64{500, 500})
	quals := []byte{40, 40, 40, 40, 40, 40, 40, 40}
	_, status := c.Correct([]byte("GAAAAAAA"), quals)
	if status != Dropped {
		t.Fatalf("expected an ambiguous correction to be dropped, got %v", status)
	}
}

func TestCorrectNoWhitelistNeighborDrops(t *testing.T) {
	c := newTestCorrector(t, []string{"TTTTTTTT"}, []uint64{10})
	_, status := c.Correct([]byte("AAAAAAAA"), []byte{40, 40, 40, 40, 40, 40, 40, 40})
	if status != Dropped {
		t.Fatalf("expected Dropped for a barcode with no whitelist neighbor, got %v", status)
	}
}

func TestEstimateAbundanceGuardTripsOnLowPassRate(t *testing.T) {
	c := newTestCorrector(t, []string{"ACGTACGT"}, []uint64{0})
	want, _ := kmers.Encode([]byte("ACGTACGT"))
	samples := make([]uint64, 100)
	samples[0] = want // only 1/100 pass
	if err := c.EstimateAbundance(samples, false); err == nil {
		t.Fatalf("expected a low-pass-rate error")
	}
	if err := c.EstimateAbundance(samples, true); err != nil {
		t.Fatalf("skipCheck should bypass the guard: %v", err)
	}
}
