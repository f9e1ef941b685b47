package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/sigcache"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// CallbackTxStatus polls a submitted transaction's confirmation status.
const CallbackTxStatus = "tx_status"

// NewTxStatusHandler resolves the short signature id from the cache and
// answers the callback with the transaction's current status.
func NewTxStatusHandler(chain *solana.Service, sigs *sigcache.Cache) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)

		signature, ok := sigs.Get(CallbackData(c))
		if !ok {
			return c.Respond(&telebot.CallbackResponse{Text: s.T.T("tx.status_unknown")})
		}

		network := wallet.Network(s.Settings)
		status, err := chain.SignatureStatus(RequestContext(c), network, signature)
		if err != nil {
			return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.network")})
		}

		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("tx.status_" + status)})
	}
}
