package align

import "testing"

func TestCheckErrorThreshold(t *testing.T) {
	if err := CheckErrorThreshold(15); err != nil {
		t.Fatalf("e=15 should be accepted (band=31 bits): %v", err)
	}
	if err := CheckErrorThreshold(16); err == nil {
		t.Fatalf("e=16 should be rejected (band=33 bits)")
	}
	if err := CheckErrorThreshold(-1); err == nil {
		t.Fatalf("negative error threshold should be rejected")
	}
}

func TestAlignExactMatch(t *testing.T) {
	e := 3
	v, err := NewVerifier(e)
	if err != nil {
		t.Fatal(err)
	}

	read := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	// window = e bases of padding, the read itself, e bases of padding
	window := append(append(repeat("A", e), read...), repeat("A", e)...)

	numErrors, endPos := v.Align(window, read)
	if numErrors != 0 {
		t.Fatalf("expected 0 errors for exact match, got %d", numErrors)
	}

	start := v.Traceback(numErrors, window, read)
	if start != e {
		t.Fatalf("expected traceback start %d, got %d", e, start)
	}

	if got := endPos - start + 1; got != len(read) {
		t.Fatalf("end-start+1 should equal read length %d, got %d", len(read), got)
	}
}

func TestAlignOneSubstitution(t *testing.T) {
	e := 3
	v, err := NewVerifier(e)
	if err != nil {
		t.Fatal(err)
	}

	read := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	mutated := append([]byte(nil), read...)
	mutated[10] = 'A' // was C

	window := append(append(repeat("A", e), read...), repeat("A", e)...)

	numErrors, _ := v.Align(window, mutated)
	if numErrors != 1 {
		t.Fatalf("expected 1 error, got %d", numErrors)
	}
}

func TestAlignOverThreshold(t *testing.T) {
	e := 1
	v, err := NewVerifier(e)
	if err != nil {
		t.Fatal(err)
	}

	read := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	mutated := append([]byte(nil), read...)
	for i := 0; i < 8; i++ {
		if mutated[i] == 'A' {
			mutated[i] = 'C'
		} else {
			mutated[i] = 'A'
		}
	}

	window := append(append(repeat("A", e), read...), repeat("A", e)...)

	numErrors, _ := v.Align(window, mutated)
	if numErrors <= e {
		t.Fatalf("expected over-threshold result (> %d), got %d", e, numErrors)
	}
}

func repeat(s string, n int) []byte {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return out
}
