package token

import (
	"encoding/binary"
	"fmt"
)

// Serialized layout versions. A version byte leads every stored record
// so a width change cannot be mistaken for valid data.
const (
	mintLayoutVersion        = 1
	feeScheduleLayoutVersion = 1
)

// Serialized widths. A mint's storage region holds the Mint record at
// offset 0 followed by the FeeSchedule at offset MintLen, so the region
// must be at least MintLen+FeeScheduleLen bytes.
const (
	// MintLen = version(1) + decimals(1) + authority flag+key(33) +
	// freeze flag+key(33) + initialized(1).
	MintLen = 1 + 1 + 33 + 33 + 1

	// FeeScheduleLen = version(1) + buy bps(2) + sell bps(2) +
	// collector(32) + rewards program(32).
	FeeScheduleLen = 1 + 2 + 2 + 32 + 32
)

// MaxBasisPoints is the denominator of all fee rates (100%).
const MaxBasisPoints = 10_000

// Default fee rates written at mint initialization: 5% each way.
const (
	DefaultBuyFeeBps  = 500
	DefaultSellFeeBps = 500
)

// Mint is the fungible asset's immutable-after-init record.
type Mint struct {
	Decimals        uint8
	MintAuthority   *PublicKey
	FreezeAuthority *PublicKey
	IsInitialized   bool
}

// Encode writes the mint record into dst, which must be at least
// MintLen bytes.
func (m *Mint) Encode(dst []byte) error {
	if len(dst) < MintLen {
		return fmt.Errorf("mint region too small: need %d bytes, have %d", MintLen, len(dst))
	}
	dst[0] = mintLayoutVersion
	dst[1] = m.Decimals
	encodeOptionalKey(dst[2:35], m.MintAuthority)
	encodeOptionalKey(dst[35:68], m.FreezeAuthority)
	if m.IsInitialized {
		dst[68] = 1
	} else {
		dst[68] = 0
	}
	return nil
}

// DecodeMint reads a mint record from the start of src.
func DecodeMint(src []byte) (*Mint, error) {
	if len(src) < MintLen {
		return nil, fmt.Errorf("mint data too short: need %d bytes, have %d", MintLen, len(src))
	}
	if src[0] != mintLayoutVersion {
		return nil, fmt.Errorf("unsupported mint layout version %d", src[0])
	}
	m := &Mint{Decimals: src[1], IsInitialized: src[68] != 0}
	var err error
	if m.MintAuthority, err = decodeOptionalKey(src[2:35]); err != nil {
		return nil, fmt.Errorf("mint authority: %w", err)
	}
	if m.FreezeAuthority, err = decodeOptionalKey(src[35:68]); err != nil {
		return nil, fmt.Errorf("freeze authority: %w", err)
	}
	return m, nil
}

// FeeSchedule holds the per-mint fee rates and routing identities.
// Rates are basis points, 0..10000.
type FeeSchedule struct {
	BuyFeeBps      uint16
	SellFeeBps     uint16
	FeeCollector   PublicKey
	RewardsProgram PublicKey
}

// Encode writes the schedule into dst, which must be at least
// FeeScheduleLen bytes.
func (f *FeeSchedule) Encode(dst []byte) error {
	if len(dst) < FeeScheduleLen {
		return fmt.Errorf("fee schedule region too small: need %d bytes, have %d", FeeScheduleLen, len(dst))
	}
	dst[0] = feeScheduleLayoutVersion
	binary.LittleEndian.PutUint16(dst[1:3], f.BuyFeeBps)
	binary.LittleEndian.PutUint16(dst[3:5], f.SellFeeBps)
	copy(dst[5:37], f.FeeCollector[:])
	copy(dst[37:69], f.RewardsProgram[:])
	return nil
}

// DecodeFeeSchedule reads a fee schedule from the start of src.
func DecodeFeeSchedule(src []byte) (*FeeSchedule, error) {
	if len(src) < FeeScheduleLen {
		return nil, fmt.Errorf("fee schedule data too short: need %d bytes, have %d", FeeScheduleLen, len(src))
	}
	if src[0] != feeScheduleLayoutVersion {
		return nil, fmt.Errorf("unsupported fee schedule layout version %d", src[0])
	}
	f := &FeeSchedule{
		BuyFeeBps:  binary.LittleEndian.Uint16(src[1:3]),
		SellFeeBps: binary.LittleEndian.Uint16(src[3:5]),
	}
	copy(f.FeeCollector[:], src[5:37])
	copy(f.RewardsProgram[:], src[37:69])
	return f, nil
}

// RateFor returns the applicable rate for a transfer direction.
func (f *FeeSchedule) RateFor(isBuy bool) uint16 {
	if isBuy {
		return f.BuyFeeBps
	}
	return f.SellFeeBps
}

// encodeOptionalKey writes flag(1)+key(32); an absent key is a zero
// flag with zero bytes.
func encodeOptionalKey(dst []byte, pk *PublicKey) {
	if pk == nil {
		for i := range dst[:33] {
			dst[i] = 0
		}
		return
	}
	dst[0] = 1
	copy(dst[1:33], pk[:])
}

// decodeOptionalKey reads flag(1)+key(32).
func decodeOptionalKey(src []byte) (*PublicKey, error) {
	switch src[0] {
	case 0:
		return nil, nil
	case 1:
		pk, err := PublicKeyFromBytes(src[1:33])
		if err != nil {
			return nil, err
		}
		return &pk, nil
	default:
		return nil, fmt.Errorf("invalid optional key flag %d", src[0])
	}
}
