package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	// penumbraHRP is the human-readable part of shielded addresses.
	penumbraHRP = "penumbra"
	// penumbraAddressLen is the raw address length: 16-byte diversifier,
	// 32-byte transmission key, 32-byte clue key.
	penumbraAddressLen = 80
)

// EncodePenumbra encodes an 80-byte raw shielded address as bech32m.
func EncodePenumbra(raw []byte) (string, error) {
	if len(raw) != penumbraAddressLen {
		return "", fmt.Errorf("raw address must be %d bytes, got %d", penumbraAddressLen, len(raw))
	}
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %s", err)
	}
	addr, err := bech32.EncodeM(penumbraHRP, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32m: %s", err)
	}
	return addr, nil
}

// DecodePenumbra decodes and verifies a bech32m shielded address, returning
// the 80 raw bytes.
func DecodePenumbra(addr string) ([]byte, error) {
	hrp, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bech32: %s", err)
	}
	if version != bech32.VersionM {
		return nil, fmt.Errorf("address is not bech32m")
	}
	if hrp != penumbraHRP {
		return nil, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert bits: %s", err)
	}
	if len(raw) != penumbraAddressLen {
		return nil, fmt.Errorf("unexpected address length %d", len(raw))
	}
	return raw, nil
}
