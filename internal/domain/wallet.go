package domain

import "time"

// Wallet is a custodial Solana keypair held for a Telegram user.
// PrivateKey is the base58-encoded 64-byte ed25519 secret key.
type Wallet struct {
	ID         int64
	UserID     int64
	Address    string
	PrivateKey string
	CreatedAt  time.Time
}

// ShortAddress returns a truncated address for menus and logs.
func (w Wallet) ShortAddress() string {
	if len(w.Address) <= 12 {
		return w.Address
	}
	return w.Address[:6] + "..." + w.Address[len(w.Address)-6:]
}
