package validation

import (
	"fmt"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/wallet"
)

// ValidateAddress validates an address format for the given chain,
// including its checksum.
func ValidateAddress(chain models.Chain, addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch chain {
	case models.ChainAssetHub:
		if _, _, err := wallet.DecodeSS58(addr); err != nil {
			return fmt.Errorf("invalid SS58 address: %w", err)
		}
		return nil
	case models.ChainPenumbra:
		if _, err := wallet.DecodePenumbra(addr); err != nil {
			return fmt.Errorf("invalid shielded address: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown chain %q", chain)
}
