package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceAdapter binds a Client to a single address and exposes its USDC
// balance as a plain float64, the shape the risk package's kill switch
// expects from a wallet. Kept separate from Client so callers that need
// the full Balances/Position surface aren't forced through this.
type BalanceAdapter struct {
	client  *Client
	address common.Address
}

// NewBalanceAdapter creates an adapter for the kill switch's balance check.
func NewBalanceAdapter(client *Client, address common.Address) *BalanceAdapter {
	return &BalanceAdapter{client: client, address: address}
}

// GetBalances fetches the address's USDC balance, converted from
// 6-decimal on-chain units to a float64.
func (a *BalanceAdapter) GetBalances(ctx context.Context) (float64, error) {
	balances, err := a.client.GetBalances(ctx, a.address)
	if err != nil {
		return 0, err
	}

	usdcFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.USDC),
		big.NewFloat(1e6))
	usdcVal, _ := usdcFloat.Float64()

	return usdcVal, nil
}
