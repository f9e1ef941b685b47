package flipflop

// MintData is the protocol's view of a launched token. WalletMinted is only
// populated when the lookup was scoped to a wallet.
type MintData struct {
	TokenAddress    string `json:"token_address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	TotalSupply     uint64 `json:"total_supply"`
	Decimals        uint8  `json:"decimals"`
	CurrentEra      int    `json:"current_era"`
	MintFeeLamports uint64 `json:"mint_fee_lamports"`
	WalletMinted    uint64 `json:"wallet_minted"`
}

// MintRequest submits one mint action.
type MintRequest struct {
	Wallet       string `json:"wallet"`
	TokenAddress string `json:"token_address"`
	URC          string `json:"urc,omitempty"`
}

// MintResult is the outcome of a successful mint.
type MintResult struct {
	Signature string `json:"signature"`
	Minted    uint64 `json:"minted"`
}

// RefundRequest returns a wallet's minted balance to the protocol.
type RefundRequest struct {
	Wallet       string `json:"wallet"`
	TokenAddress string `json:"token_address"`
}

// RefundResult is the outcome of a successful refund.
type RefundResult struct {
	Signature        string `json:"signature"`
	RefundedLamports uint64 `json:"refunded_lamports"`
}

// URCData is a referral code record.
type URCData struct {
	Code         string `json:"code"`
	TokenAddress string `json:"token_address"`
	Referrer     string `json:"referrer"`
	UsageCount   int    `json:"usage_count"`
	Active       bool   `json:"active"`
}

// SetURCRequest registers a referral code for a wallet on a token.
type SetURCRequest struct {
	Wallet       string `json:"wallet"`
	TokenAddress string `json:"token_address"`
	Code         string `json:"code"`
}
