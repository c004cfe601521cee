package instruction

import (
	"errors"
	"testing"

	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

func testKey(fill byte) token.PublicKey {
	var pk token.PublicKey
	for i := range pk {
		pk[i] = fill
	}
	return pk
}

func TestTokenPackUnpackRoundTrip(t *testing.T) {
	authority := testKey(0x11)
	holder := testKey(0x22)

	instructions := []TokenInstruction{
		InitializeMint{Decimals: 9, MintAuthority: &authority},
		InitializeMint{Decimals: 0},
		MintTo{Amount: 1_000_000},
		Transfer{Amount: 100_000, IsBuy: true},
		Transfer{Amount: 42, IsBuy: false},
		UpdateHolderBalance{Holder: holder, Balance: 95_000},
	}

	for _, want := range instructions {
		packed := PackToken(want)
		got, err := UnpackToken(packed)
		if err != nil {
			t.Fatalf("unpack %T: %v", want, err)
		}

		switch w := want.(type) {
		case InitializeMint:
			g, ok := got.(InitializeMint)
			if !ok {
				t.Fatalf("got %T, want InitializeMint", got)
			}
			if g.Decimals != w.Decimals {
				t.Errorf("decimals: got %d, want %d", g.Decimals, w.Decimals)
			}
			if (g.MintAuthority == nil) != (w.MintAuthority == nil) {
				t.Errorf("authority presence: got %v, want %v", g.MintAuthority, w.MintAuthority)
			}
			if g.MintAuthority != nil && *g.MintAuthority != *w.MintAuthority {
				t.Errorf("authority: got %s, want %s", g.MintAuthority, w.MintAuthority)
			}
		default:
			if got != want {
				t.Errorf("round trip: got %#v, want %#v", got, want)
			}
		}
	}
}

func TestUnpackToken_TransferWithoutDirectionByte(t *testing.T) {
	// A 9-byte transfer (tag + amount) is legal; the direction
	// defaults to sell.
	packed := PackToken(Transfer{Amount: 7})[:9]

	got, err := UnpackToken(packed)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	ix, ok := got.(Transfer)
	if !ok {
		t.Fatalf("got %T, want Transfer", got)
	}
	if ix.Amount != 7 || ix.IsBuy {
		t.Errorf("got %+v, want amount 7, sell", ix)
	}
}

func TestUnpackToken_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "unknown tag", data: []byte{7}},
		{name: "initialize mint truncated", data: []byte{TagInitializeMint, 9, 0, 0}},
		{name: "mint to truncated", data: []byte{TagMintTo, 1, 2, 3}},
		{name: "transfer truncated", data: []byte{TagTransfer, 1, 2, 3, 4, 5, 6, 7}},
		{name: "holder update missing balance", data: append([]byte{TagUpdateHolderBalance}, make([]byte, 32)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnpackToken(tt.data); !errors.Is(err, program.ErrInvalidInstructionData) {
				t.Errorf("got %v, want ErrInvalidInstructionData", err)
			}
		})
	}
}

// Every truncation of a valid transfer below the required width fails.
func TestUnpackToken_AllTruncations(t *testing.T) {
	packed := PackToken(Transfer{Amount: 100_000, IsBuy: true})
	for i := 1; i < 9; i++ {
		if _, err := UnpackToken(packed[:i]); !errors.Is(err, program.ErrInvalidInstructionData) {
			t.Errorf("truncated to %d bytes: got %v, want ErrInvalidInstructionData", i, err)
		}
	}
}
