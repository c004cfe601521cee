package idhash

import "testing"

func TestComputeTransferIDDeterministic(t *testing.T) {
	a := ComputeTransferID("mint", "src", "dst", 100_000, 1_700_000_000)
	b := ComputeTransferID("mint", "src", "dst", 100_000, 1_700_000_000)

	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("id length = %d, want 64 hex chars", len(a))
	}
}

func TestComputeTransferIDDistinct(t *testing.T) {
	base := ComputeTransferID("mint", "src", "dst", 100_000, 1_700_000_000)

	variants := []string{
		ComputeTransferID("mint2", "src", "dst", 100_000, 1_700_000_000),
		ComputeTransferID("mint", "src2", "dst", 100_000, 1_700_000_000),
		ComputeTransferID("mint", "src", "dst2", 100_000, 1_700_000_000),
		ComputeTransferID("mint", "src", "dst", 100_001, 1_700_000_000),
		ComputeTransferID("mint", "src", "dst", 100_000, 1_700_000_001),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base id", i)
		}
	}
}
