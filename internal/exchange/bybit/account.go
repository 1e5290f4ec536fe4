package bybit

import (
	"context"
	"encoding/json"
	"fmt"
)

// WalletBalance is the subset of the unified account snapshot the bot uses.
type WalletBalance struct {
	TotalEquity        float64
	TotalWalletBalance float64
	TotalAvailable     float64
	TotalPerpUPL       float64
}

// GetWalletBalance retrieves the UNIFIED account balance in the quote coin.
func (c *Client) GetWalletBalance(ctx context.Context, coin string) (*WalletBalance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}
	if coin != "" {
		params["coin"] = coin
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	serverResp, err := checkResponse(result)
	if err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalWalletBalance    string `json:"totalWalletBalance"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			TotalPerpUPL          string `json:"totalPerpUPL"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no account data found")
	}

	account := walletResult.List[0]
	return &WalletBalance{
		TotalEquity:        parseFloat64(account.TotalEquity),
		TotalWalletBalance: parseFloat64(account.TotalWalletBalance),
		TotalAvailable:     parseFloat64(account.TotalAvailableBalance),
		TotalPerpUPL:       parseFloat64(account.TotalPerpUPL),
	}, nil
}
