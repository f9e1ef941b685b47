package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
)

// Callback uniques of the URC flows.
const (
	CallbackSetURCWallet  = "seturc_wallet"
	CallbackSetURCConfirm = "seturc_confirm"
)

const (
	getURCStepEnterCode = "enter_code"

	setURCStepEnterToken   = "enter_token"
	setURCStepEnterCode    = "enter_code"
	setURCStepSelectWallet = "select_wallet"
	setURCStepConfirm      = "confirm"
)

const minURCLength = 3

// GetURC looks up a referral code record: a single-value read-only flow.
type GetURC struct {
	deps  *Deps
	store *state.Store[struct{}]
}

// NewGetURC constructs the flow with its own state store.
func NewGetURC(deps *Deps) *GetURC {
	return &GetURC{
		deps:  deps,
		store: state.New[struct{}](deps.Log, deps.StateOpts...),
	}
}

func (f *GetURC) Name() string { return "get_urc" }

func (f *GetURC) Abort(userID int64) { f.store.Clear(userID) }

func (f *GetURC) Stats() state.Stats { return f.store.Stats() }

func (f *GetURC) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *GetURC) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	f.store.Set(c.Sender().ID, getURCStepEnterCode, struct{}{})
	return respond(c, s.T.T("flow.get_urc.enter_code"), f.deps.Keyboard.Cancel(s.T))
}

func (f *GetURC) AwaitsText(userID int64) bool {
	return f.store.Step(userID) == getURCStepEnterCode
}

func (f *GetURC) HandleText(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	code := strings.TrimSpace(c.Text())
	if len(code) < minURCLength {
		return c.Send(s.T.T("errors.invalid_urc"), f.deps.Keyboard.Cancel(s.T))
	}

	urc, err := f.deps.Protocol.URCData(requestContext(c), code)
	if err != nil {
		return err
	}

	f.store.Clear(userID)

	status := s.T.T("urc.status_inactive")
	if urc.Active {
		status = s.T.T("urc.status_active")
	}

	return c.Send(s.T.T("flow.get_urc.result", map[string]string{
		"code":     urc.Code,
		"token":    urc.TokenAddress,
		"referrer": keyboard.ShortAddress(urc.Referrer),
		"usage":    strconv.Itoa(urc.UsageCount),
		"status":   status,
	}), f.deps.Keyboard.MainMenu(s.T))
}

type setURCPayload struct {
	Token  string
	Code   string
	Wallet string
}

// SetURC registers a referral code for one of the user's wallets on a token:
// enter token, enter code, pick wallet, confirm.
type SetURC struct {
	deps  *Deps
	store *state.Store[setURCPayload]
}

// NewSetURC constructs the flow with its own state store.
func NewSetURC(deps *Deps) *SetURC {
	return &SetURC{
		deps:  deps,
		store: state.New[setURCPayload](deps.Log, deps.StateOpts...),
	}
}

func (f *SetURC) Name() string { return "set_urc" }

func (f *SetURC) Abort(userID int64) { f.store.Clear(userID) }

func (f *SetURC) Stats() state.Stats { return f.store.Stats() }

func (f *SetURC) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *SetURC) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := f.deps.Wallets.Count(requestContext(c), userID)
	if err != nil {
		return err
	}
	if count == 0 {
		return respond(c, s.T.T("wallets.none"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, setURCStepEnterToken, setURCPayload{})

	return respond(c, s.T.T("flow.set_urc.enter_token"), f.deps.Keyboard.Cancel(s.T))
}

func (f *SetURC) AwaitsText(userID int64) bool {
	switch f.store.Step(userID) {
	case setURCStepEnterToken, setURCStepEnterCode:
		return true
	}
	return false
}

func (f *SetURC) HandleText(c telebot.Context) error {
	switch f.store.Step(c.Sender().ID) {
	case setURCStepEnterToken:
		return f.handleToken(c)
	case setURCStepEnterCode:
		return f.handleCode(c)
	}
	return nil
}

func (f *SetURC) handleToken(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	token := c.Text()
	if !solana.ValidAddress(token) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	if _, err := f.deps.Protocol.MintData(requestContext(c), token, ""); err != nil {
		return err
	}

	f.store.Advance(userID, setURCStepEnterCode, func(p *setURCPayload) {
		p.Token = token
	})

	return c.Send(s.T.T("flow.set_urc.enter_code"), f.deps.Keyboard.Cancel(s.T))
}

func (f *SetURC) handleCode(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	code := strings.TrimSpace(c.Text())
	if len(code) < minURCLength || !validURCCode(code) {
		return c.Send(s.T.T("errors.invalid_urc"), f.deps.Keyboard.Cancel(s.T))
	}

	wallets, err := f.deps.Wallets.List(ctx, userID)
	if err != nil {
		return err
	}

	f.store.Advance(userID, setURCStepSelectWallet, func(p *setURCPayload) {
		p.Code = code
	})

	// a single wallet needs no picker
	if len(wallets) == 1 {
		return f.confirmPrompt(c, wallets[0].Address)
	}

	return c.Send(s.T.T("flow.set_urc.select_wallet"), f.deps.Keyboard.WalletPicker(s.T, CallbackSetURCWallet, wallets))
}

// SelectWallet handles the referrer wallet pick.
func (f *SetURC) SelectWallet(c telebot.Context) error {
	userID := c.Sender().ID

	if f.store.Step(userID) != setURCStepSelectWallet {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	return f.confirmPrompt(c, address)
}

func (f *SetURC) confirmPrompt(c telebot.Context, address string) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	var summary setURCPayload
	if !f.store.Advance(userID, setURCStepConfirm, func(p *setURCPayload) {
		p.Wallet = address
		summary = *p
	}) {
		return f.deps.expired(c)
	}

	return respond(c, s.T.T("flow.set_urc.confirm", map[string]string{
		"code":   summary.Code,
		"token":  keyboard.ShortAddress(summary.Token),
		"wallet": keyboard.ShortAddress(address),
	}), f.deps.Keyboard.Confirm(s.T, CallbackSetURCConfirm))
}

// Confirm takes the user's lock and registers the code.
func (f *SetURC) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != setURCStepConfirm {
		return f.deps.expired(c)
	}
	p := rec.Payload

	locked := false
	defer func() {
		if !locked {
			f.store.Clear(userID)
		}
	}()

	if err := f.deps.guard(ctx, userID); err != nil {
		return err
	}

	err := f.store.WithLock(userID, func() error {
		if err := f.deps.Protocol.SetURC(ctx, flipflop.SetURCRequest{
			Wallet:       p.Wallet,
			TokenAddress: p.Token,
			Code:         p.Code,
		}); err != nil {
			return err
		}

		f.deps.Log.Info("set urc flow completed",
			slog.Int64("user_id", userID),
			slog.String("code", p.Code),
		)

		return respond(c, s.T.T("flow.set_urc.done", map[string]string{
			"code": p.Code,
		}), f.deps.Keyboard.MainMenu(s.T))
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}

// validURCCode accepts letters, digits, dashes and underscores.
func validURCCode(code string) bool {
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
