package flows

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the refund flow.
const (
	CallbackRefundWallet  = "refund_wallet"
	CallbackRefundConfirm = "refund_confirm"
)

const (
	refundStepEnterToken   = "enter_token"
	refundStepSelectWallet = "select_wallet"
	refundStepConfirm      = "confirm"
)

type refundPayload struct {
	Token    string
	Name     string
	Symbol   string
	Decimals uint8
	Wallet   string
	Minted   uint64
}

// Refund returns a wallet's minted flipflop tokens for the refundable
// deposit. The wallet must still hold everything it minted; a wallet that
// moved tokens away cannot be refunded.
type Refund struct {
	deps  *Deps
	store *state.Store[refundPayload]
}

// NewRefund constructs the flow with its own state store.
func NewRefund(deps *Deps) *Refund {
	return &Refund{
		deps:  deps,
		store: state.New[refundPayload](deps.Log, deps.StateOpts...),
	}
}

func (f *Refund) Name() string { return "refund" }

func (f *Refund) Abort(userID int64) { f.store.Clear(userID) }

func (f *Refund) Stats() state.Stats { return f.store.Stats() }

func (f *Refund) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *Refund) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := f.deps.Wallets.Count(requestContext(c), userID)
	if err != nil {
		return err
	}
	if count == 0 {
		return respond(c, s.T.T("wallets.none"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, refundStepEnterToken, refundPayload{})

	return respond(c, s.T.T("flow.refund.enter_token"), f.deps.Keyboard.Cancel(s.T))
}

func (f *Refund) AwaitsText(userID int64) bool {
	return f.store.Step(userID) == refundStepEnterToken
}

func (f *Refund) HandleText(c telebot.Context) error {
	if f.store.Step(c.Sender().ID) != refundStepEnterToken {
		return nil
	}
	return f.handleToken(c)
}

func (f *Refund) handleToken(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	token := c.Text()
	if !solana.ValidAddress(token) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	data, err := f.deps.Protocol.MintData(ctx, token, "")
	if err != nil {
		return err
	}

	wallets, err := f.deps.Wallets.List(ctx, userID)
	if err != nil {
		return err
	}

	f.store.Advance(userID, refundStepSelectWallet, func(p *refundPayload) {
		p.Token = token
		p.Name = data.Name
		p.Symbol = data.Symbol
		p.Decimals = data.Decimals
	})

	// a single wallet needs no picker
	if len(wallets) == 1 {
		return f.prepareConfirmation(c, wallets[0].Address)
	}

	return c.Send(s.T.T("flow.refund.select_wallet", map[string]string{
		"name":   data.Name,
		"symbol": data.Symbol,
	}), f.deps.Keyboard.WalletPicker(s.T, CallbackRefundWallet, wallets))
}

// SelectWallet handles the refunding wallet pick.
func (f *Refund) SelectWallet(c telebot.Context) error {
	userID := c.Sender().ID

	if f.store.Step(userID) != refundStepSelectWallet {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	return f.prepareConfirmation(c, address)
}

// prepareConfirmation checks the wallet actually has something refundable
// and still holds its full minted amount, then shows the confirm prompt.
func (f *Refund) prepareConfirmation(c telebot.Context, address string) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok {
		return f.deps.expired(c)
	}
	token := rec.Payload.Token

	data, err := f.deps.Protocol.MintData(ctx, token, address)
	if err != nil {
		return err
	}
	if data.WalletMinted == 0 {
		f.store.Clear(userID)
		return respond(c, s.T.T("flow.refund.nothing_minted"), f.deps.Keyboard.MainMenu(s.T))
	}

	network := wallet.Network(s.Settings)
	balance, _, err := f.deps.Chain.TokenBalance(ctx, network, address, token)
	if err != nil {
		return err
	}
	if balance < data.WalletMinted {
		f.store.Clear(userID)
		return respond(c, s.T.T("errors.refund_balance_mismatch", map[string]string{
			"minted":  solana.FormatAmount(data.WalletMinted, rec.Payload.Decimals),
			"balance": solana.FormatAmount(balance, rec.Payload.Decimals),
		}), f.deps.Keyboard.MainMenu(s.T))
	}

	var summary refundPayload
	f.store.Advance(userID, refundStepConfirm, func(p *refundPayload) {
		p.Wallet = address
		p.Minted = data.WalletMinted
		summary = *p
	})

	return respond(c, s.T.T("flow.refund.confirm", map[string]string{
		"amount": solana.FormatAmount(summary.Minted, summary.Decimals),
		"symbol": summary.Symbol,
		"wallet": keyboard.ShortAddress(address),
	}), f.deps.Keyboard.Confirm(s.T, CallbackRefundConfirm))
}

// Confirm re-checks the minted-versus-held balance, then takes the user's
// lock and submits the refund.
func (f *Refund) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != refundStepConfirm {
		return f.deps.expired(c)
	}
	p := rec.Payload

	locked := false
	defer func() {
		if !locked {
			f.store.Clear(userID)
		}
	}()

	network := wallet.Network(s.Settings)
	balance, _, err := f.deps.Chain.TokenBalance(ctx, network, p.Wallet, p.Token)
	if err != nil {
		return err
	}
	if balance < p.Minted {
		return respond(c, s.T.T("errors.refund_balance_mismatch", map[string]string{
			"minted":  solana.FormatAmount(p.Minted, p.Decimals),
			"balance": solana.FormatAmount(balance, p.Decimals),
		}), f.deps.Keyboard.MainMenu(s.T))
	}

	if err := f.deps.guard(ctx, userID); err != nil {
		return err
	}

	err = f.store.WithLock(userID, func() error {
		result, err := f.deps.Protocol.Refund(ctx, flipflop.RefundRequest{
			Wallet:       p.Wallet,
			TokenAddress: p.Token,
		})
		if err != nil {
			return err
		}

		f.deps.Log.Info("refund flow completed",
			slog.Int64("user_id", userID),
			slog.String("token", p.Token),
			slog.Uint64("refunded_lamports", result.RefundedLamports),
		)

		return f.deps.submittedTx(c, network, "flow.refund.submitted", map[string]string{
			"amount":   solana.FormatAmount(p.Minted, p.Decimals),
			"symbol":   p.Symbol,
			"refunded": solana.FormatAmount(result.RefundedLamports, 9),
		}, result.Signature)
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}
