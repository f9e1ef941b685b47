package flows

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the send-SPL flow.
const (
	CallbackSendSPLWallet  = "sendspl_wallet"
	CallbackSendSPLConfirm = "sendspl_confirm"
)

const (
	sendSPLStepSelectSender   = "select_sender"
	sendSPLStepEnterToken     = "enter_token"
	sendSPLStepEnterRecipient = "enter_recipient"
	sendSPLStepEnterAmount    = "enter_amount"
	sendSPLStepConfirm        = "confirm"
)

type sendSPLPayload struct {
	Sender    string
	Mint      string
	Recipient string
	Amount    uint64
	Decimals  uint8
	Balance   uint64
}

// SendSPL transfers SPL tokens from one of the user's wallets: pick sender,
// enter mint, enter recipient, enter amount, confirm. The mint's decimals are
// resolved when the token is entered so the amount can be parsed exactly.
type SendSPL struct {
	deps  *Deps
	store *state.Store[sendSPLPayload]
}

// NewSendSPL constructs the flow with its own state store.
func NewSendSPL(deps *Deps) *SendSPL {
	return &SendSPL{
		deps:  deps,
		store: state.New[sendSPLPayload](deps.Log, deps.StateOpts...),
	}
}

func (f *SendSPL) Name() string { return "send_spl" }

func (f *SendSPL) Abort(userID int64) { f.store.Clear(userID) }

func (f *SendSPL) Stats() state.Stats { return f.store.Stats() }

func (f *SendSPL) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *SendSPL) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	wallets, err := f.deps.Wallets.List(requestContext(c), userID)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return respond(c, s.T.T("wallets.none"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, sendSPLStepSelectSender, sendSPLPayload{})

	return respond(c, s.T.T("flow.send_spl.select_sender"), f.deps.Keyboard.WalletPicker(s.T, CallbackSendSPLWallet, wallets))
}

// SelectWallet handles the sender pick.
func (f *SendSPL) SelectWallet(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != sendSPLStepSelectSender {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	f.store.Advance(userID, sendSPLStepEnterToken, func(p *sendSPLPayload) {
		p.Sender = address
	})

	return respond(c, s.T.T("flow.send_spl.enter_token", map[string]string{
		"wallet": keyboard.ShortAddress(address),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *SendSPL) AwaitsText(userID int64) bool {
	switch f.store.Step(userID) {
	case sendSPLStepEnterToken, sendSPLStepEnterRecipient, sendSPLStepEnterAmount:
		return true
	}
	return false
}

func (f *SendSPL) HandleText(c telebot.Context) error {
	switch f.store.Step(c.Sender().ID) {
	case sendSPLStepEnterToken:
		return f.handleToken(c)
	case sendSPLStepEnterRecipient:
		return f.handleRecipient(c)
	case sendSPLStepEnterAmount:
		return f.handleAmount(c)
	}
	return nil
}

func (f *SendSPL) handleToken(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	mint := c.Text()
	if !solana.ValidAddress(mint) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	rec, ok := f.store.Get(userID)
	if !ok {
		return f.deps.expired(c)
	}

	network := wallet.Network(s.Settings)
	balance, decimals, err := f.deps.Chain.TokenBalance(requestContext(c), network, rec.Payload.Sender, mint)
	if err != nil {
		return err
	}
	if balance == 0 {
		f.store.Clear(userID)
		return c.Send(s.T.T("errors.no_token_balance"), f.deps.Keyboard.MainMenu(s.T))
	}

	f.store.Advance(userID, sendSPLStepEnterRecipient, func(p *sendSPLPayload) {
		p.Mint = mint
		p.Decimals = decimals
		p.Balance = balance
	})

	return c.Send(s.T.T("flow.send_spl.enter_recipient", map[string]string{
		"balance": solana.FormatAmount(balance, decimals),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *SendSPL) handleRecipient(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	recipient := c.Text()
	if !solana.ValidAddress(recipient) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	f.store.Advance(userID, sendSPLStepEnterAmount, func(p *sendSPLPayload) {
		p.Recipient = recipient
	})

	return c.Send(s.T.T("flow.send_spl.enter_amount"), f.deps.Keyboard.Cancel(s.T))
}

func (f *SendSPL) handleAmount(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	rec, ok := f.store.Get(userID)
	if !ok {
		return f.deps.expired(c)
	}

	amount, err := solana.ParseAmount(c.Text(), rec.Payload.Decimals)
	if err != nil {
		return c.Send(s.T.T("errors.invalid_amount"), f.deps.Keyboard.Cancel(s.T))
	}
	if amount > rec.Payload.Balance {
		return c.Send(s.T.T("errors.insufficient_token_balance", map[string]string{
			"balance": solana.FormatAmount(rec.Payload.Balance, rec.Payload.Decimals),
		}), f.deps.Keyboard.Cancel(s.T))
	}

	var summary sendSPLPayload
	f.store.Advance(userID, sendSPLStepConfirm, func(p *sendSPLPayload) {
		p.Amount = amount
		summary = *p
	})

	return c.Send(s.T.T("flow.send_spl.confirm", map[string]string{
		"amount":    solana.FormatAmount(summary.Amount, summary.Decimals),
		"mint":      keyboard.ShortAddress(summary.Mint),
		"sender":    keyboard.ShortAddress(summary.Sender),
		"recipient": summary.Recipient,
	}), f.deps.Keyboard.Confirm(s.T, CallbackSendSPLConfirm))
}

// Confirm re-validates balances, then takes the user's lock and submits.
func (f *SendSPL) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != sendSPLStepConfirm {
		return f.deps.expired(c)
	}
	p := rec.Payload

	locked := false
	defer func() {
		if !locked {
			f.store.Clear(userID)
		}
	}()

	w, err := f.deps.Wallets.Get(ctx, userID, p.Sender)
	if err != nil {
		return err
	}

	network := wallet.Network(s.Settings)

	balance, _, err := f.deps.Chain.TokenBalance(ctx, network, p.Sender, p.Mint)
	if err != nil {
		return err
	}
	if balance < p.Amount {
		return respond(c, s.T.T("errors.insufficient_token_balance", map[string]string{
			"balance": solana.FormatAmount(balance, p.Decimals),
		}), f.deps.Keyboard.MainMenu(s.T))
	}

	solBalance, err := f.deps.Chain.Balance(ctx, network, p.Sender)
	if err != nil {
		return err
	}
	fee := f.deps.Chain.EstimateTransferFee(ctx, network, p.Sender, p.Recipient)
	if solBalance < fee {
		return respond(c, s.T.T("errors.insufficient_balance_detail", map[string]string{
			"balance": solana.FormatAmount(solBalance, 9),
			"needed":  solana.FormatAmount(fee, 9),
		}), f.deps.Keyboard.MainMenu(s.T))
	}

	if err := f.deps.guard(ctx, userID); err != nil {
		return err
	}

	err = f.store.WithLock(userID, func() error {
		keypair, err := f.deps.Wallets.Keypair(*w)
		if err != nil {
			return err
		}

		signature, err := f.deps.Chain.TransferToken(ctx, network, keypair, p.Recipient, p.Mint, p.Amount)
		if err != nil {
			return apperrors.Classify("send spl", err)
		}

		f.deps.Log.Info("send spl flow completed",
			slog.Int64("user_id", userID),
			slog.String("mint", p.Mint),
			slog.String("signature", signature),
		)

		return f.deps.submittedTx(c, network, "flow.send_spl.submitted", map[string]string{
			"amount":    solana.FormatAmount(p.Amount, p.Decimals),
			"mint":      keyboard.ShortAddress(p.Mint),
			"recipient": p.Recipient,
		}, signature)
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}
