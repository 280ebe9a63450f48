package models

import "fmt"

// Chain identifies a deposit rail.
type Chain string

const (
	// ChainAssetHub is the Polkadot Asset Hub parachain (transparent,
	// account-addressed; deposits are matched by destination address).
	ChainAssetHub Chain = "polkadot_assethub"
	// ChainPenumbra is the Penumbra shielded chain (index-addressed;
	// deposits are matched by the derived address sub-index, the address
	// itself never appears on-chain in plaintext).
	ChainPenumbra Chain = "penumbra"
)

// Chains lists every supported deposit chain.
var Chains = []Chain{ChainAssetHub, ChainPenumbra}

// ParseChain validates a chain name coming from the API or config.
func ParseChain(s string) (Chain, error) {
	switch Chain(s) {
	case ChainAssetHub:
		return ChainAssetHub, nil
	case ChainPenumbra:
		return ChainPenumbra, nil
	}
	return "", fmt.Errorf("unknown chain %q", s)
}
