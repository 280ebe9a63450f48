package wallet

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

// Deriver deterministically derives per-account deposit addresses from a
// single master seed. The same seed, account and index always produce the
// same address; the raw chain keys never leave this package.
type Deriver struct {
	seed []byte
}

// FromSeedBytes builds a Deriver from a raw 32- or 64-byte master seed.
func FromSeedBytes(seed []byte) (*Deriver, error) {
	if len(seed) != 32 && len(seed) != 64 {
		return nil, fmt.Errorf("seed must be 32 or 64 bytes, got %d", len(seed))
	}
	d := &Deriver{seed: make([]byte, len(seed))}
	copy(d.seed, seed)
	return d, nil
}

// FromSeedHex builds a Deriver from a hex-encoded seed, with or without a
// 0x prefix.
func FromSeedHex(s string) (*Deriver, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed hex: %s", err)
	}
	return FromSeedBytes(seed)
}

// FromPassphrase builds a Deriver from a human-supplied phrase. A valid
// BIP-39 mnemonic goes through the standard seed derivation; anything else
// is stretched with SHA-512 so operators are not forced into mnemonics.
func FromPassphrase(phrase string) (*Deriver, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, fmt.Errorf("empty seed phrase")
	}
	if bip39.IsMnemonicValid(phrase) {
		seed := bip39.NewSeed(phrase, "")
		return FromSeedBytes(seed[:32])
	}
	sum := sha512.Sum512([]byte("custodia-seed:" + phrase))
	return FromSeedBytes(sum[:32])
}

// AssetHubAddress derives the SS58 deposit address for an account at the
// given derivation index.
func (d *Deriver) AssetHubAddress(accountID string, index uint32) (string, error) {
	h, err := blake2b.New256(d.seed)
	if err != nil {
		return "", fmt.Errorf("failed to init keyed hash: %s", err)
	}
	h.Write([]byte("assethub:"))
	h.Write([]byte(accountID))
	h.Write([]byte{':'})
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	h.Write(idx[:])

	pub := h.Sum(nil)
	return EncodeSS58(0, pub)
}

// PenumbraAddress derives the shielded deposit address and its diversifier
// sub-index for an account at the given derivation index. The sub-index is
// what observed notes carry, so it is returned alongside the address and
// persisted with it.
func (d *Deriver) PenumbraAddress(accountID string, index uint32) (string, uint32, error) {
	xof, err := blake2b.NewXOF(penumbraAddressLen+4, d.seed)
	if err != nil {
		return "", 0, fmt.Errorf("failed to init keyed xof: %s", err)
	}
	xof.Write([]byte("penumbra:"))
	xof.Write([]byte(accountID))
	xof.Write([]byte{':'})
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	xof.Write(idx[:])

	buf := make([]byte, penumbraAddressLen+4)
	if _, err := xof.Read(buf); err != nil {
		return "", 0, fmt.Errorf("failed to read xof output: %s", err)
	}

	addr, err := EncodePenumbra(buf[:penumbraAddressLen])
	if err != nil {
		return "", 0, err
	}
	subIndex := binary.LittleEndian.Uint32(buf[penumbraAddressLen:])
	return addr, subIndex, nil
}
