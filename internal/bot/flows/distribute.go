package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/domain"
	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the distribute flow.
const (
	CallbackDistributeAsset     = "dist_asset"
	CallbackDistributeMode      = "dist_mode"
	CallbackDistributeWallet    = "dist_wallet"
	CallbackDistributeRecipient = "dist_recipient"
	CallbackDistributeConfirm   = "dist_confirm"
)

const (
	distStepSelectAsset     = "select_asset"
	distStepEnterToken      = "enter_token"
	distStepSelectMode      = "select_mode"
	distStepSelectSender    = "select_sender"
	distStepSelectRecipient = "select_recipient"
	distStepEnterAmount     = "enter_amount"
	distStepConfirm         = "confirm"
)

const (
	distAssetSOL = "sol"
	distAssetSPL = "spl"

	distModeEven   = "even"
	distModeSingle = "single"
)

type distributePayload struct {
	Asset     string
	Mint      string
	Decimals  uint8
	Mode      string
	Sender    string
	Recipient string
	Amount    uint64
}

// Distribute moves funds between the user's own wallets: either an even
// split of a total across all other wallets, with the integer remainder
// credited to the first recipient, or a single transfer to one chosen wallet.
type Distribute struct {
	deps  *Deps
	store *state.Store[distributePayload]
}

// NewDistribute constructs the flow with its own state store.
func NewDistribute(deps *Deps) *Distribute {
	return &Distribute{
		deps:  deps,
		store: state.New[distributePayload](deps.Log, deps.StateOpts...),
	}
}

func (f *Distribute) Name() string { return "distribute" }

func (f *Distribute) Abort(userID int64) { f.store.Clear(userID) }

func (f *Distribute) Stats() state.Stats { return f.store.Stats() }

func (f *Distribute) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback. Distribution needs at least two wallets.
func (f *Distribute) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := f.deps.Wallets.Count(requestContext(c), userID)
	if err != nil {
		return err
	}
	if count < 2 {
		return respond(c, s.T.T("flow.distribute.need_two_wallets"), f.deps.Keyboard.BackToMenu(s.T))
	}

	f.store.Set(userID, distStepSelectAsset, distributePayload{})

	return respond(c, s.T.T("flow.distribute.select_asset"),
		f.deps.Keyboard.Choice(s.T, CallbackDistributeAsset, "assets", distAssetSOL, distAssetSPL))
}

// SelectAsset handles the SOL-or-SPL pick.
func (f *Distribute) SelectAsset(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != distStepSelectAsset {
		return f.deps.expired(c)
	}

	asset := callbackPayload(c)
	if asset != distAssetSOL && asset != distAssetSPL {
		return f.deps.expired(c)
	}

	if asset == distAssetSPL {
		f.store.Advance(userID, distStepEnterToken, func(p *distributePayload) {
			p.Asset = asset
		})
		return respond(c, s.T.T("flow.distribute.enter_token"), f.deps.Keyboard.Cancel(s.T))
	}

	f.store.Advance(userID, distStepSelectMode, func(p *distributePayload) {
		p.Asset = asset
		p.Decimals = 9
	})

	return respond(c, s.T.T("flow.distribute.select_mode"),
		f.deps.Keyboard.Choice(s.T, CallbackDistributeMode, "distribute_modes", distModeEven, distModeSingle))
}

// SelectMode handles the even-split-or-single pick.
func (f *Distribute) SelectMode(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != distStepSelectMode {
		return f.deps.expired(c)
	}

	mode := callbackPayload(c)
	if mode != distModeEven && mode != distModeSingle {
		return f.deps.expired(c)
	}

	wallets, err := f.deps.Wallets.List(requestContext(c), userID)
	if err != nil {
		return err
	}

	f.store.Advance(userID, distStepSelectSender, func(p *distributePayload) {
		p.Mode = mode
	})

	return respond(c, s.T.T("flow.distribute.select_sender"),
		f.deps.Keyboard.WalletPicker(s.T, CallbackDistributeWallet, wallets))
}

// SelectSender handles the source wallet pick.
func (f *Distribute) SelectSender(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	if f.store.Step(userID) != distStepSelectSender {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(ctx, userID, address); err != nil {
		return err
	}

	rec, ok := f.store.Get(userID)
	if !ok {
		return f.deps.expired(c)
	}

	if rec.Payload.Mode == distModeSingle {
		wallets, err := f.deps.Wallets.List(ctx, userID)
		if err != nil {
			return err
		}
		others := withoutWallet(wallets, address)

		f.store.Advance(userID, distStepSelectRecipient, func(p *distributePayload) {
			p.Sender = address
		})

		return respond(c, s.T.T("flow.distribute.select_recipient"),
			f.deps.Keyboard.WalletPicker(s.T, CallbackDistributeRecipient, others))
	}

	f.store.Advance(userID, distStepEnterAmount, func(p *distributePayload) {
		p.Sender = address
	})

	return respond(c, s.T.T("flow.distribute.enter_total", map[string]string{
		"wallet": keyboard.ShortAddress(address),
	}), f.deps.Keyboard.Cancel(s.T))
}

// SelectRecipient handles the target wallet pick in single mode.
func (f *Distribute) SelectRecipient(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	if f.store.Step(userID) != distStepSelectRecipient {
		return f.deps.expired(c)
	}

	address := callbackPayload(c)
	if _, err := f.deps.Wallets.Get(requestContext(c), userID, address); err != nil {
		return err
	}

	f.store.Advance(userID, distStepEnterAmount, func(p *distributePayload) {
		p.Recipient = address
	})

	return respond(c, s.T.T("flow.distribute.enter_amount"), f.deps.Keyboard.Cancel(s.T))
}

func (f *Distribute) AwaitsText(userID int64) bool {
	switch f.store.Step(userID) {
	case distStepEnterToken, distStepEnterAmount:
		return true
	}
	return false
}

func (f *Distribute) HandleText(c telebot.Context) error {
	switch f.store.Step(c.Sender().ID) {
	case distStepEnterToken:
		return f.handleToken(c)
	case distStepEnterAmount:
		return f.handleAmount(c)
	}
	return nil
}

func (f *Distribute) handleToken(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	mint := c.Text()
	if !solana.ValidAddress(mint) {
		return c.Send(s.T.T("errors.invalid_address"), f.deps.Keyboard.Cancel(s.T))
	}

	f.store.Advance(userID, distStepSelectMode, func(p *distributePayload) {
		p.Mint = mint
	})

	return c.Send(s.T.T("flow.distribute.select_mode"),
		f.deps.Keyboard.Choice(s.T, CallbackDistributeMode, "distribute_modes", distModeEven, distModeSingle))
}

func (f *Distribute) handleAmount(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	rec, ok := f.store.Get(userID)
	if !ok {
		return f.deps.expired(c)
	}
	p := rec.Payload

	// SPL decimals are resolved lazily here, once sender and mint are known.
	decimals := p.Decimals
	if p.Asset == distAssetSPL {
		network := wallet.Network(s.Settings)
		balance, d, err := f.deps.Chain.TokenBalance(requestContext(c), network, p.Sender, p.Mint)
		if err != nil {
			return err
		}
		if balance == 0 {
			f.store.Clear(userID)
			return c.Send(s.T.T("errors.no_token_balance"), f.deps.Keyboard.MainMenu(s.T))
		}
		decimals = d
	}

	amount, err := solana.ParseAmount(c.Text(), decimals)
	if err != nil {
		return c.Send(s.T.T("errors.invalid_amount"), f.deps.Keyboard.Cancel(s.T))
	}

	var summary distributePayload
	f.store.Advance(userID, distStepConfirm, func(p *distributePayload) {
		p.Amount = amount
		p.Decimals = decimals
		summary = *p
	})

	key := "flow.distribute.confirm_even"
	target := s.T.T("flow.distribute.all_other_wallets")
	if summary.Mode == distModeSingle {
		key = "flow.distribute.confirm_single"
		target = keyboard.ShortAddress(summary.Recipient)
	}

	return c.Send(s.T.T(key, map[string]string{
		"amount": solana.FormatAmount(summary.Amount, summary.Decimals),
		"asset":  assetLabel(summary),
		"sender": keyboard.ShortAddress(summary.Sender),
		"target": target,
	}), f.deps.Keyboard.Confirm(s.T, CallbackDistributeConfirm))
}

// Confirm validates the source balance, then takes the user's lock and runs
// the transfers sequentially. Recipients keep wallet creation order, so an
// even split credits its remainder to the oldest other wallet.
func (f *Distribute) Confirm(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID
	ctx := requestContext(c)

	rec, ok := f.store.Get(userID)
	if !ok || rec.Step != distStepConfirm {
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

	recipients := []string{p.Recipient}
	if p.Mode == distModeEven {
		wallets, err := f.deps.Wallets.List(ctx, userID)
		if err != nil {
			return err
		}
		recipients = addressesOf(withoutWallet(wallets, p.Sender))
		if len(recipients) == 0 {
			return respond(c, s.T.T("flow.distribute.need_two_wallets"), f.deps.Keyboard.MainMenu(s.T))
		}
	}

	network := wallet.Network(s.Settings)
	if err := f.checkFunds(ctx, s, network, p, len(recipients)); err != nil {
		return err
	}

	if err := f.deps.guard(ctx, userID); err != nil {
		return err
	}

	err = f.store.WithLock(userID, func() error {
		keypair, err := f.deps.Wallets.Keypair(*w)
		if err != nil {
			return err
		}

		allocations := solana.SplitEven(p.Amount, len(recipients))

		var lines []string
		successful := 0
		for i, recipient := range recipients {
			signature, err := f.transfer(ctx, network, keypair, p, recipient, allocations[i])
			if err != nil {
				f.deps.Log.Error("distribution transfer failed",
					slog.Int64("user_id", userID),
					slog.String("recipient", recipient),
					slog.Any("error", err),
				)
				lines = append(lines, s.T.T("flow.distribute.line_failed", map[string]string{
					"recipient": keyboard.ShortAddress(recipient),
				}))
				continue
			}
			successful++
			lines = append(lines, s.T.T("flow.distribute.line_ok", map[string]string{
				"recipient": keyboard.ShortAddress(recipient),
				"amount":    solana.FormatAmount(allocations[i], p.Decimals),
				"signature": keyboard.ShortAddress(signature),
			}))
		}

		f.deps.Log.Info("distribute flow completed",
			slog.Int64("user_id", userID),
			slog.Int("recipients", len(recipients)),
			slog.Int("successful", successful),
		)

		return respond(c, s.T.T("flow.distribute.result", map[string]string{
			"total":      strconv.Itoa(len(recipients)),
			"successful": strconv.Itoa(successful),
			"failed":     strconv.Itoa(len(recipients) - successful),
			"lines":      strings.Join(lines, "\n"),
		}), f.deps.Keyboard.MainMenu(s.T))
	})
	if errors.Is(err, state.ErrLocked) {
		locked = true
		return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.operation_in_progress")})
	}

	return err
}

func (f *Distribute) checkFunds(ctx context.Context, s *handlers.Session, network solana.Network, p distributePayload, recipientCount int) error {
	fee := f.deps.Chain.EstimateTransferFee(ctx, network, p.Sender, p.Sender)
	totalFees := fee * uint64(recipientCount)

	solBalance, err := f.deps.Chain.Balance(ctx, network, p.Sender)
	if err != nil {
		return err
	}

	if p.Asset == distAssetSOL {
		if solBalance < p.Amount+totalFees {
			return apperrors.NewInsufficientFundsError(solBalance, p.Amount+totalFees)
		}
		return nil
	}

	if solBalance < totalFees {
		return apperrors.NewInsufficientFundsError(solBalance, totalFees)
	}

	tokenBalance, _, err := f.deps.Chain.TokenBalance(ctx, network, p.Sender, p.Mint)
	if err != nil {
		return err
	}
	if tokenBalance < p.Amount {
		return apperrors.NewInsufficientFundsError(tokenBalance, p.Amount)
	}

	return nil
}

func (f *Distribute) transfer(ctx context.Context, network solana.Network, keypair types.Account, p distributePayload, recipient string, amount uint64) (string, error) {
	if p.Asset == distAssetSOL {
		return f.deps.Chain.TransferSOL(ctx, network, keypair, recipient, amount)
	}
	return f.deps.Chain.TransferToken(ctx, network, keypair, recipient, p.Mint, amount)
}

func assetLabel(p distributePayload) string {
	if p.Asset == distAssetSOL {
		return "SOL"
	}
	return keyboard.ShortAddress(p.Mint)
}

func withoutWallet(wallets []domain.Wallet, address string) []domain.Wallet {
	others := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.Address != address {
			others = append(others, w)
		}
	}
	return others
}

func addressesOf(wallets []domain.Wallet) []string {
	addrs := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addrs = append(addrs, w.Address)
	}
	return addrs
}
