package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SidecarClient reads finalized Asset Hub blocks from a Substrate API
// Sidecar instance. The sidecar serves blocks with extrinsics already
// decoded to JSON, so no SCALE handling happens here.
type SidecarClient struct {
	baseURL string
	client  *http.Client
}

func NewSidecarClient(baseURL string) *SidecarClient {
	return &SidecarClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// AssetTransfer is one successful asset-pallet transfer found in a block.
// Amount is in raw planck units; the listener applies the asset's decimals.
type AssetTransfer struct {
	TxHash  string
	AssetID uint64
	To      string
	Amount  decimal.Decimal
	Block   uint64
}

type sidecarBlock struct {
	Number     string `json:"number"`
	Hash       string `json:"hash"`
	Extrinsics []struct {
		Method struct {
			Pallet string `json:"pallet"`
			Method string `json:"method"`
		} `json:"method"`
		Args    json.RawMessage `json:"args"`
		Hash    string          `json:"hash"`
		Success bool            `json:"success"`
	} `json:"extrinsics"`
}

type assetTransferArgs struct {
	ID     string `json:"id"`
	Target struct {
		ID string `json:"id"`
	} `json:"target"`
	Amount string `json:"amount"`
}

// FinalizedHeight returns the latest finalized block number.
func (c *SidecarClient) FinalizedHeight(ctx context.Context) (uint64, error) {
	var block sidecarBlock
	if err := c.get(ctx, "/blocks/head?finalized=true", &block); err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(block.Number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block number %q: %s", block.Number, err)
	}
	return height, nil
}

// BlockTransfers fetches one block and extracts its successful asset-pallet
// transfers. Extrinsics that do not decode as transfers are skipped.
func (c *SidecarClient) BlockTransfers(ctx context.Context, height uint64) ([]AssetTransfer, error) {
	var block sidecarBlock
	if err := c.get(ctx, fmt.Sprintf("/blocks/%d", height), &block); err != nil {
		return nil, err
	}

	var transfers []AssetTransfer
	for _, ext := range block.Extrinsics {
		if !ext.Success || ext.Method.Pallet != "assets" {
			continue
		}
		switch ext.Method.Method {
		case "transfer", "transferKeepAlive", "transfer_keep_alive":
		default:
			continue
		}

		var args assetTransferArgs
		if err := json.Unmarshal(ext.Args, &args); err != nil {
			continue
		}
		assetID, err := strconv.ParseUint(args.ID, 10, 64)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(args.Amount)
		if err != nil {
			continue
		}
		transfers = append(transfers, AssetTransfer{
			TxHash:  ext.Hash,
			AssetID: assetID,
			To:      args.Target.ID,
			Amount:  amount,
			Block:   height,
		})
	}
	return transfers, nil
}

func (c *SidecarClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %s", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query sidecar: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sidecar response: %s", err)
	}
	return nil
}
