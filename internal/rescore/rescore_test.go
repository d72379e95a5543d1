package rescore

import "testing"

func TestCountEditsSumsNonMatchOps(t *testing.T) {
	cases := []struct {
		cigar string
		want  int
	}{
		{"32M", 0},
		{"10M1X21M", 1},
		{"5M2I25M", 2},
		{"5M3D27M", 3},
		{"10M1X1I1D20M", 3},
	}
	for _, c := range cases {
		if got := countEdits(c.cigar); got != c.want {
			t.Fatalf("countEdits(%q) = %d, want %d", c.cigar, got, c.want)
		}
	}
}
