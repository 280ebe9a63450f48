package validation

import (
	"testing"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/wallet"
)

func TestValidateAddress(t *testing.T) {
	d, err := wallet.FromSeedBytes(make([]byte, 32))
	if err != nil {
		t.Fatalf("FromSeedBytes: %v", err)
	}
	ss58, err := d.AssetHubAddress("acct", 0)
	if err != nil {
		t.Fatalf("AssetHubAddress: %v", err)
	}
	shielded, _, err := d.PenumbraAddress("acct", 0)
	if err != nil {
		t.Fatalf("PenumbraAddress: %v", err)
	}

	cases := []struct {
		name    string
		chain   models.Chain
		addr    string
		wantErr bool
	}{
		{"valid ss58", models.ChainAssetHub, ss58, false},
		{"valid shielded", models.ChainPenumbra, shielded, false},
		{"empty", models.ChainAssetHub, "", true},
		{"ss58 on wrong chain", models.ChainPenumbra, ss58, true},
		{"shielded on wrong chain", models.ChainAssetHub, shielded, true},
		{"garbage", models.ChainAssetHub, "not-an-address", true},
		{"unknown chain", models.Chain("ethereum"), ss58, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.chain, tc.addr)
			if tc.wantErr && err == nil {
				t.Errorf("expected error for %q on %s", tc.addr, tc.chain)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
