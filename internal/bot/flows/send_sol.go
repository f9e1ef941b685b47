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

// Callback uniques of the send-SOL flow.
const (
	CallbackSendSOLWallet  = "sendsol_wallet"
	CallbackSendSOLConfirm = "sendsol_confirm"
)

const (
	sendSOLStepSelectSender   = "select_sender"
	sendSOLStepEnterRecipient = "enter_recipient"
	sendSOLStepEnterAmount    = "enter_amount"
	sendSOLStepConfirm        = "confirm"
)

type sendSOLPayload struct {
	Sender    string
	Recipient string
	Lamports  uint64
}

// SendSOL transfers SOL from one of the user's wallets to an arbitrary
// address: pick sender, enter recipient, enter amount, confirm.
type SendSOL struct {
	deps  *Deps
	store *state.Store[sendSOLPayload]
}

// NewSendSOL constructs the flow with its own state store.
func NewSendSOL(deps *Deps) *SendSOL {
	return &SendSOL{
		deps:  deps,
		store: state.New[sendSOLPayload](deps.Log, deps.StateOpts...),
	}
}

func (f *SendSOL) Name() string { return "send_sol" }

func (f *SendSOL) Abort(userID int64) { f.store.Clear(userID) }

func (f *SendSOL) Stats() state.Stats { return f.store.Stats() }

func (f *SendSOL) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback. Any state the user held in other flows has
// already been cleared by the router.
func (f *SendSOL) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	wallets, err := f.deps.Wallets.List(requestContext(c), userID)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return respond(c, s.T.T("wallets.none"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, sendSOLStepSelectSender, sendSOLPayload{})

	return respond(c, s.T.T("flow.send_sol.select_sender"), f.deps.Keyboard.WalletPicker(s.T, CallbackSendSOLWallet, wallets))
}

// SelectWallet handles the sender pick.
func (f *SendSOL) SelectWallet(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != sendSOLStepSelectSender {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	f.store.Advance(userID, sendSOLStepEnterRecipient, func(p *sendSOLPayload) {
		p.Sender = address
	})

	return respond(c, s.T.T("flow.send_sol.enter_recipient", map[string]string{
		"wallet": keyboard.ShortAddress(address),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *SendSOL) AwaitsText(userID int64) bool {
	switch f.store.Step(userID) {
	case sendSOLStepEnterRecipient, sendSOLStepEnterAmount:
		return true
	}
	return false
}

func (f *SendSOL) HandleText(c telebot.Context) error {
	switch f.store.Step(c.Sender().ID) {
	case sendSOLStepEnterRecipient:
		return f.handleRecipient(c)
	case sendSOLStepEnterAmount:
		return f.handleAmount(c)
	}
	return nil
}

func (f *SendSOL) handleRecipient(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	recipient := c.Text()
	if !solana.ValidAddress(recipient) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	f.store.Advance(userID, sendSOLStepEnterAmount, func(p *sendSOLPayload) {
		p.Recipient = recipient
	})

	return c.Send(s.T.T("flow.send_sol.enter_amount"), f.deps.Keyboard.Cancel(s.T))
}

func (f *SendSOL) handleAmount(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	lamports, err := solana.ParseAmount(c.Text(), 9)
	if err != nil {
		return c.Send(s.T.T("errors.invalid_amount"), f.deps.Keyboard.Cancel(s.T))
	}

	var summary sendSOLPayload
	f.store.Advance(userID, sendSOLStepConfirm, func(p *sendSOLPayload) {
		p.Lamports = lamports
		summary = *p
	})

	return c.Send(s.T.T("flow.send_sol.confirm", map[string]string{
		"amount":    solana.FormatAmount(summary.Lamports, 9),
		"sender":    keyboard.ShortAddress(summary.Sender),
		"recipient": summary.Recipient,
	}), f.deps.Keyboard.Confirm(s.T, CallbackSendSOLConfirm))
}

// Confirm validates balances, then takes the user's lock and submits.
func (f *SendSOL) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != sendSOLStepConfirm {
		return f.deps.expired(c)
	}
	p := rec.Payload

	// The record never survives the terminal step, whatever the outcome.
	// A losing duplicate leaves record and lock to the in-flight owner.
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
	balance, err := f.deps.Chain.Balance(ctx, network, p.Sender)
	if err != nil {
		return err
	}
	fee := f.deps.Chain.EstimateTransferFee(ctx, network, p.Sender, p.Recipient)
	if balance < p.Lamports+fee {
		return respond(c, s.T.T("errors.insufficient_balance_detail", map[string]string{
			"balance": solana.FormatAmount(balance, 9),
			"needed":  solana.FormatAmount(p.Lamports+fee, 9),
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

		signature, err := f.deps.Chain.TransferSOL(ctx, network, keypair, p.Recipient, p.Lamports)
		if err != nil {
			return apperrors.Classify("send sol", err)
		}

		f.deps.Log.Info("send sol flow completed",
			slog.Int64("user_id", userID),
			slog.String("signature", signature),
		)

		return f.deps.submittedTx(c, network, "flow.send_sol.submitted", map[string]string{
			"amount":    solana.FormatAmount(p.Lamports, 9),
			"recipient": p.Recipient,
		}, signature)
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}
