package pe

import "testing"

func TestGetMAPQUniqueGoodMapping(t *testing.T) {
	mapq := GetMAPQ(1, 1, 100, 0, 1, 4, 0, 4)
	if mapq>>1 != 60 {
		t.Fatalf("expected a near-perfect unique mapping to cap at 60, got %d", mapq>>1)
	}
}

func TestGetMAPQRepetitiveMappingIsPenalized(t *testing.T) {
	mapq := GetMAPQ(1, 1, 100, 0, 5, 4, 0, 4)
	if mapq>>1 >= 60 {
		t.Fatalf("repetitive best mappings (num_best_mappings=5) should score below 60, got %d", mapq>>1)
	}
}

func TestGetMAPQNeverNegative(t *testing.T) {
	mapq := GetMAPQ(50, 50, 20, 4, 20, 0, 50, 4)
	if mapq>>1 != 0 {
		t.Fatalf("heavily repetitive/candidate-rich mapping should clamp to 0, got %d", mapq>>1)
	}
}
