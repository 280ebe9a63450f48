package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ViewClient talks to a Penumbra view service. The view service does the
// shielded scanning; this client only registers the sub-indices to scan
// for and polls the detected notes.
type ViewClient struct {
	baseURL string
	client  *http.Client
}

func NewViewClient(baseURL string) *ViewClient {
	return &ViewClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Note is one incoming shielded note detected by the view service. The
// address itself never appears; the sub-index is the only routing key.
type Note struct {
	TxHash   string
	SubIndex uint32
	Amount   decimal.Decimal
	Height   uint64
}

type viewNotesResponse struct {
	LatestHeight string `json:"latest_height"`
	Notes        []struct {
		TxHash       string `json:"tx_hash"`
		AddressIndex uint32 `json:"address_index"`
		Amount       string `json:"amount"`
		Height       string `json:"height"`
	} `json:"notes"`
}

// RegisterSubIndex tells the view service to scan for notes addressed to
// the given diversifier sub-index.
func (c *ViewClient) RegisterSubIndex(ctx context.Context, subIndex uint32) error {
	body, err := json.Marshal(map[string]uint32{"address_index": subIndex})
	if err != nil {
		return fmt.Errorf("failed to marshal watch request: %s", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/watch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to register sub-index: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("view service returned status %d", resp.StatusCode)
	}
	return nil
}

// Notes returns the notes detected above the given height, plus the view
// service's latest scanned height. Notes with unparseable fields are
// dropped here; the caller only ever sees well-formed ones.
func (c *ViewClient) Notes(ctx context.Context, since uint64) ([]Note, uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/notes?since=%d", c.baseURL, since), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %s", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query view service: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("view service returned status %d", resp.StatusCode)
	}

	var body viewNotesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("failed to decode view service response: %s", err)
	}
	latest, err := strconv.ParseUint(body.LatestHeight, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse latest height %q: %s", body.LatestHeight, err)
	}

	notes := make([]Note, 0, len(body.Notes))
	for _, n := range body.Notes {
		height, err := strconv.ParseUint(n.Height, 10, 64)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(n.Amount)
		if err != nil {
			continue
		}
		notes = append(notes, Note{
			TxHash:   n.TxHash,
			SubIndex: n.AddressIndex,
			Amount:   amount,
			Height:   height,
		})
	}
	return notes, latest, nil
}
