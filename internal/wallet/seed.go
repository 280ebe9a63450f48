package wallet

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/sonotxt/custodia/internal/models"
)

// LoadDeriver builds a Deriver from the configured seed material. A seed
// file takes precedence over the inline value. Returns ErrSeedNotConfigured
// when neither is set, so callers can run address-less (listener-only or
// read-only) deployments. The seed itself must never be logged.
func LoadDeriver(seed, seedFile string) (*Deriver, error) {
	if seedFile != "" {
		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %s", err)
		}
		seed = string(raw)
	}
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, models.ErrSeedNotConfigured
	}
	if isHexSeed(seed) {
		return FromSeedHex(seed)
	}
	return FromPassphrase(seed)
}

func isHexSeed(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 && len(s) != 128 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
