package solana

import "fmt"

// ExplorerTxURL returns the solscan link for a transaction signature.
func ExplorerTxURL(network Network, signature string) string {
	if network == NetworkDevnet {
		return fmt.Sprintf("https://solscan.io/tx/%s?cluster=devnet", signature)
	}
	return fmt.Sprintf("https://solscan.io/tx/%s", signature)
}
