package instruction

import (
	"errors"
	"testing"

	"spl-rewards-token/internal/program"
)

func TestRewardsPackUnpackRoundTrip(t *testing.T) {
	instructions := []RewardsInstruction{
		InitializeRewardsPool{},
		SwapFeesForReferenceAsset{},
		DistributeRewards{},
		AddLiquidity{},
		RewardsUpdateHolderBalance{Holder: testKey(0x33), Balance: 12_345},
	}

	for _, want := range instructions {
		packed := PackRewards(want)
		got, err := UnpackRewards(packed)
		if err != nil {
			t.Fatalf("unpack %T: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip: got %#v, want %#v", got, want)
		}
	}
}

func TestUnpackRewards_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "unknown tag", data: []byte{9}},
		{name: "holder update missing key", data: []byte{TagRewardsUpdateHolderBalance, 1, 2}},
		{name: "holder update missing balance", data: append([]byte{TagRewardsUpdateHolderBalance}, make([]byte, 32)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnpackRewards(tt.data); !errors.Is(err, program.ErrInvalidInstructionData) {
				t.Errorf("got %v, want ErrInvalidInstructionData", err)
			}
		})
	}
}
