package wallet

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ss58Prefix is the constant the SS58 checksum is domain-separated with.
var ss58Prefix = []byte("SS58PRE")

// EncodeSS58 encodes a 32-byte public key as an SS58 address for the given
// network. Network 0 is the Polkadot relay and its system parachains, which
// is why Asset Hub addresses start with '1'.
func EncodeSS58(network byte, pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", fmt.Errorf("public key must be 32 bytes, got %d", len(pub))
	}
	data := make([]byte, 0, 35)
	data = append(data, network)
	data = append(data, pub...)
	data = append(data, ss58Checksum(data)...)
	return base58.Encode(data), nil
}

// DecodeSS58 decodes and checksum-verifies an SS58 address, returning the
// network byte and the 32-byte public key.
func DecodeSS58(addr string) (byte, []byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode base58: %s", err)
	}
	if len(raw) != 35 {
		return 0, nil, fmt.Errorf("unexpected address length %d", len(raw))
	}
	body, sum := raw[:33], raw[33:]
	if !bytes.Equal(sum, ss58Checksum(body)) {
		return 0, nil, fmt.Errorf("checksum mismatch")
	}
	return body[0], body[1:], nil
}

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(data)
	return h.Sum(nil)[:2]
}
