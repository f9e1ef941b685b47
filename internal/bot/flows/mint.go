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
	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the mint flow.
const (
	CallbackMintWallet  = "mint_wallet"
	CallbackMintConfirm = "mint_confirm"
)

const (
	mintStepEnterToken   = "enter_token"
	mintStepEnterURC     = "enter_urc"
	mintStepSelectWallet = "select_wallet"
	mintStepEnterCount   = "enter_count"
	mintStepConfirm      = "confirm"
)

// MaxMintBatch caps how many mints one confirmation may trigger.
const MaxMintBatch = 10

type mintPayload struct {
	Token   string
	Name    string
	Symbol  string
	MintFee uint64
	URC     string
	Wallet  string
	Count   int
}

// Mint submits 1..10 sequential mint actions against a flipflop token:
// enter token, enter referral code, pick wallet, enter batch size, confirm.
// Each mint is reported as it lands and the batch ends with a tally.
type Mint struct {
	deps  *Deps
	store *state.Store[mintPayload]
}

// NewMint constructs the flow with its own state store.
func NewMint(deps *Deps) *Mint {
	return &Mint{
		deps:  deps,
		store: state.New[mintPayload](deps.Log, deps.StateOpts...),
	}
}

func (f *Mint) Name() string { return "mint" }

func (f *Mint) Abort(userID int64) { f.store.Clear(userID) }

func (f *Mint) Stats() state.Stats { return f.store.Stats() }

func (f *Mint) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *Mint) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := f.deps.Wallets.Count(requestContext(c), userID)
	if err != nil {
		return err
	}
	if count == 0 {
		return respond(c, s.T.T("wallets.none"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, mintStepEnterToken, mintPayload{})

	return respond(c, s.T.T("flow.mint.enter_token"), f.deps.Keyboard.Cancel(s.T))
}

func (f *Mint) AwaitsText(userID int64) bool {
	switch f.store.Step(userID) {
	case mintStepEnterToken, mintStepEnterURC, mintStepEnterCount:
		return true
	}
	return false
}

func (f *Mint) HandleText(c telebot.Context) error {
	switch f.store.Step(c.Sender().ID) {
	case mintStepEnterToken:
		return f.handleToken(c)
	case mintStepEnterURC:
		return f.handleURC(c)
	case mintStepEnterCount:
		return f.handleCount(c)
	}
	return nil
}

func (f *Mint) handleToken(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	token := c.Text()
	if !solana.ValidAddress(token) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	data, err := f.deps.Protocol.MintData(requestContext(c), token, "")
	if err != nil {
		return err
	}

	f.store.Advance(userID, mintStepEnterURC, func(p *mintPayload) {
		p.Token = token
		p.Name = data.Name
		p.Symbol = data.Symbol
		p.MintFee = data.MintFeeLamports
	})

	return c.Send(s.T.T("flow.mint.enter_urc", map[string]string{
		"name":   data.Name,
		"symbol": data.Symbol,
		"fee":    solana.FormatAmount(data.MintFeeLamports, 9),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *Mint) handleURC(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	code := strings.TrimSpace(c.Text())
	if len(code) < 3 {
		return c.Send(s.T.T("errors.invalid_urc"), f.deps.Keyboard.Cancel(s.T))
	}

	urc, err := f.deps.Protocol.URCData(ctx, code)
	if err != nil {
		return err
	}
	if !urc.Active {
		return c.Send(s.T.T("errors.urc_inactive"), f.deps.Keyboard.Cancel(s.T))
	}

	wallets, err := f.deps.Wallets.List(ctx, userID)
	if err != nil {
		return err
	}

	// a single wallet needs no picker
	if len(wallets) == 1 {
		f.store.Advance(userID, mintStepEnterCount, func(p *mintPayload) {
			p.URC = code
			p.Wallet = wallets[0].Address
		})
		return c.Send(s.T.T("flow.mint.enter_count", map[string]string{
			"max": strconv.Itoa(MaxMintBatch),
		}), f.deps.Keyboard.Cancel(s.T))
	}

	f.store.Advance(userID, mintStepSelectWallet, func(p *mintPayload) {
		p.URC = code
	})

	return c.Send(s.T.T("flow.mint.select_wallet"), f.deps.Keyboard.WalletPicker(s.T, CallbackMintWallet, wallets))
}

// SelectWallet handles the minting wallet pick.
func (f *Mint) SelectWallet(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != mintStepSelectWallet {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	f.store.Advance(userID, mintStepEnterCount, func(p *mintPayload) {
		p.Wallet = address
	})

	return respond(c, s.T.T("flow.mint.enter_count", map[string]string{
		"max": strconv.Itoa(MaxMintBatch),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *Mint) handleCount(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || count < 1 || count > MaxMintBatch {
		return c.Send(s.T.T("errors.invalid_batch_count", map[string]string{
			"max": strconv.Itoa(MaxMintBatch),
		}), f.deps.Keyboard.Cancel(s.T))
	}

	var summary mintPayload
	f.store.Advance(userID, mintStepConfirm, func(p *mintPayload) {
		p.Count = count
		summary = *p
	})

	total := summary.MintFee * uint64(count)
	return c.Send(s.T.T("flow.mint.confirm", map[string]string{
		"count":  strconv.Itoa(count),
		"name":   summary.Name,
		"symbol": summary.Symbol,
		"wallet": keyboard.ShortAddress(summary.Wallet),
		"urc":    summary.URC,
		"total":  solana.FormatAmount(total, 9),
	}), f.deps.Keyboard.Confirm(s.T, CallbackMintConfirm))
}

// Confirm validates the wallet can cover the whole batch, then takes the
// user's lock and mints sequentially, reporting each attempt as it finishes.
func (f *Mint) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != mintStepConfirm {
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
	balance, err := f.deps.Chain.Balance(ctx, network, p.Wallet)
	if err != nil {
		return err
	}
	needed := (p.MintFee + solana.FallbackFeeLamports) * uint64(p.Count)
	if balance < needed {
		return respond(c, s.T.T("errors.insufficient_balance_detail", map[string]string{
			"balance": solana.FormatAmount(balance, 9),
			"needed":  solana.FormatAmount(needed, 9),
		}), f.deps.Keyboard.MainMenu(s.T))
	}

	if err := f.deps.guard(ctx, userID); err != nil {
		return err
	}

	err = f.store.WithLock(userID, func() error {
		_ = c.Respond(&telebot.CallbackResponse{})

		successful := 0
		for i := 1; i <= p.Count; i++ {
			signature, err := f.deps.Protocol.Mint(ctx, flipflop.MintRequest{
				Wallet:       p.Wallet,
				TokenAddress: p.Token,
				URC:          p.URC,
			})
			if err != nil {
				f.deps.Log.Error("mint attempt failed",
					slog.Int64("user_id", userID),
					slog.Int("attempt", i),
					slog.Any("error", err),
				)
				_ = c.Send(s.T.T("flow.mint.progress_failed", map[string]string{
					"index": strconv.Itoa(i),
					"count": strconv.Itoa(p.Count),
					"error": s.T.T(userMessageOf(err)),
				}))
				continue
			}

			successful++
			_ = c.Send(s.T.T("flow.mint.progress_ok", map[string]string{
				"index":     strconv.Itoa(i),
				"count":     strconv.Itoa(p.Count),
				"signature": keyboard.ShortAddress(signature),
			}))
		}

		f.deps.Log.Info("mint flow completed",
			slog.Int64("user_id", userID),
			slog.String("token", p.Token),
			slog.Int("total", p.Count),
			slog.Int("successful", successful),
		)

		return c.Send(s.T.T("flow.mint.result", map[string]string{
			"total":      strconv.Itoa(p.Count),
			"successful": strconv.Itoa(successful),
			"failed":     strconv.Itoa(p.Count - successful),
		}), f.deps.Keyboard.MainMenu(s.T))
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}

// userMessageOf extracts the localization key carried by an AppError,
// defaulting to the generic unknown-error key.
func userMessageOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "errors.unknown"
}
