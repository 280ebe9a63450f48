package wallet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := FromSeedBytes(make([]byte, 32))
	if err != nil {
		t.Fatalf("FromSeedBytes: %v", err)
	}
	return d
}

func TestAssetHubAddressDeterministic(t *testing.T) {
	d := testDeriver(t)

	a1, err := d.AssetHubAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	a2, err := d.AssetHubAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	if a1 != a2 {
		t.Errorf("same inputs produced different addresses: %s vs %s", a1, a2)
	}
	if !strings.HasPrefix(a1, "1") {
		t.Errorf("network 0 address should start with '1', got %s", a1)
	}
}

func TestAssetHubAddressDistinct(t *testing.T) {
	d := testDeriver(t)

	a1, err := d.AssetHubAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	a2, err := d.AssetHubAddress("user2@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	if a1 == a2 {
		t.Errorf("different accounts produced the same address: %s", a1)
	}

	a3, err := d.AssetHubAddress("user1@example.com", 1)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	if a1 == a3 {
		t.Errorf("different indices produced the same address: %s", a1)
	}
}

func TestAssetHubAddressNoCollisions(t *testing.T) {
	d := testDeriver(t)

	seen := make(map[string]bool)
	accounts := []string{"alice", "bob", "carol", "dave", "erin"}
	for _, acc := range accounts {
		for i := uint32(0); i < 200; i++ {
			addr, err := d.AssetHubAddress(acc, i)
			if err != nil {
				t.Fatalf("AssetHubAddress(%s, %d): %v", acc, i, err)
			}
			if seen[addr] {
				t.Fatalf("collision at account %s index %d: %s", acc, i, addr)
			}
			seen[addr] = true
		}
	}
}

func TestSS58RoundTrip(t *testing.T) {
	d := testDeriver(t)

	addr, err := d.AssetHubAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	network, pub, err := DecodeSS58(addr)
	if err != nil {
		t.Fatalf("DecodeSS58(%s): %v", addr, err)
	}
	if network != 0 {
		t.Errorf("expected network 0, got %d", network)
	}
	if len(pub) != 32 {
		t.Errorf("expected 32-byte public key, got %d", len(pub))
	}

	reencoded, err := EncodeSS58(network, pub)
	if err != nil {
		t.Fatalf("EncodeSS58: %v", err)
	}
	if reencoded != addr {
		t.Errorf("round trip mismatch: %s vs %s", addr, reencoded)
	}
}

func TestSS58RejectsCorruption(t *testing.T) {
	d := testDeriver(t)

	addr, err := d.AssetHubAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	// Flip one character; base58 has no 'l', so this always changes the payload.
	corrupted := addr[:5] + "l" + addr[6:]
	if _, _, err := DecodeSS58(corrupted); err == nil {
		t.Errorf("expected corrupted address to be rejected: %s", corrupted)
	}
}

func TestPenumbraAddressDeterministic(t *testing.T) {
	d := testDeriver(t)

	a1, s1, err := d.PenumbraAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("PenumbraAddress: %v", err)
	}
	a2, s2, err := d.PenumbraAddress("user1@example.com", 0)
	if err != nil {
		t.Fatalf("PenumbraAddress: %v", err)
	}
	if a1 != a2 || s1 != s2 {
		t.Errorf("same inputs produced different results: %s/%d vs %s/%d", a1, s1, a2, s2)
	}
	if !strings.HasPrefix(a1, "penumbra1") {
		t.Errorf("expected penumbra1 prefix, got %s", a1)
	}

	a3, _, err := d.PenumbraAddress("user2@example.com", 0)
	if err != nil {
		t.Fatalf("PenumbraAddress: %v", err)
	}
	if a1 == a3 {
		t.Errorf("different accounts produced the same address: %s", a1)
	}
}

func TestPenumbraRoundTrip(t *testing.T) {
	d := testDeriver(t)

	addr, _, err := d.PenumbraAddress("user1@example.com", 3)
	if err != nil {
		t.Fatalf("PenumbraAddress: %v", err)
	}
	raw, err := DecodePenumbra(addr)
	if err != nil {
		t.Fatalf("DecodePenumbra(%s): %v", addr, err)
	}
	if len(raw) != penumbraAddressLen {
		t.Errorf("expected %d raw bytes, got %d", penumbraAddressLen, len(raw))
	}
	reencoded, err := EncodePenumbra(raw)
	if err != nil {
		t.Fatalf("EncodePenumbra: %v", err)
	}
	if reencoded != addr {
		t.Errorf("round trip mismatch: %s vs %s", addr, reencoded)
	}
}

func TestFromSeedHex(t *testing.T) {
	d1, err := FromSeedHex("0x" + strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("FromSeedHex with prefix: %v", err)
	}
	d2, err := FromSeedHex(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("FromSeedHex without prefix: %v", err)
	}
	a1, _ := d1.AssetHubAddress("acct", 0)
	a2, _ := d2.AssetHubAddress("acct", 0)
	if a1 != a2 {
		t.Errorf("0x prefix changed derivation: %s vs %s", a1, a2)
	}

	if _, err := FromSeedHex("zz"); err == nil {
		t.Error("expected invalid hex to be rejected")
	}
	if _, err := FromSeedBytes(make([]byte, 16)); err == nil {
		t.Error("expected short seed to be rejected")
	}
}

func TestFromPassphrase(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	d1, err := FromPassphrase(mnemonic)
	if err != nil {
		t.Fatalf("FromPassphrase mnemonic: %v", err)
	}
	d2, err := FromPassphrase("not a mnemonic at all")
	if err != nil {
		t.Fatalf("FromPassphrase freeform: %v", err)
	}
	a1, _ := d1.AssetHubAddress("acct", 0)
	a2, _ := d2.AssetHubAddress("acct", 0)
	if a1 == a2 {
		t.Error("different phrases produced the same address")
	}

	if _, err := FromPassphrase("   "); err == nil {
		t.Error("expected empty phrase to be rejected")
	}
}

func TestLoadDeriver(t *testing.T) {
	if _, err := LoadDeriver("", ""); err == nil {
		t.Error("expected error when no seed is configured")
	}

	path := filepath.Join(t.TempDir(), "seed")
	if err := os.WriteFile(path, []byte(strings.Repeat("cd", 32)+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fromFile, err := LoadDeriver("", path)
	if err != nil {
		t.Fatalf("LoadDeriver from file: %v", err)
	}
	fromValue, err := LoadDeriver(strings.Repeat("cd", 32), "")
	if err != nil {
		t.Fatalf("LoadDeriver from value: %v", err)
	}
	a1, _ := fromFile.AssetHubAddress("acct", 0)
	a2, _ := fromValue.AssetHubAddress("acct", 0)
	if a1 != a2 {
		t.Errorf("file and inline seed disagree: %s vs %s", a1, a2)
	}
}
