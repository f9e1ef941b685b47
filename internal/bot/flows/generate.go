package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

const generateStepEnterCount = "enter_count"

// Generate creates new custodial wallets for the user. The mnemonics are
// shown in the reply exactly once and never persisted.
type Generate struct {
	deps  *Deps
	store *state.Store[struct{}]
}

// NewGenerate constructs the flow with its own state store.
func NewGenerate(deps *Deps) *Generate {
	return &Generate{
		deps:  deps,
		store: state.New[struct{}](deps.Log, deps.StateOpts...),
	}
}

func (f *Generate) Name() string { return "generate" }

func (f *Generate) Abort(userID int64) { f.store.Clear(userID) }

func (f *Generate) Stats() state.Stats { return f.store.Stats() }

func (f *Generate) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *Generate) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	f.store.Set(c.Sender().ID, generateStepEnterCount, struct{}{})
	return respond(c, s.T.T("flow.generate.enter_count", map[string]string{
		"max": strconv.Itoa(wallet.MaxBatchSize),
	}), f.deps.Keyboard.Cancel(s.T))
}

func (f *Generate) AwaitsText(userID int64) bool {
	return f.store.Step(userID) == generateStepEnterCount
}

func (f *Generate) HandleText(c telebot.Context) error {
	s := handlers.GetSession(c)
	userID := c.Sender().ID

	count, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || count < 1 || count > wallet.MaxBatchSize {
		return c.Send(s.T.T("errors.invalid_batch_count", map[string]string{
			"max": strconv.Itoa(wallet.MaxBatchSize),
		}), f.deps.Keyboard.Cancel(s.T))
	}

	err = f.store.WithLock(userID, func() error {
		defer f.store.Clear(userID)

		generated, err := f.deps.Wallets.Generate(requestContext(c), userID, count)
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(s.T.T("flow.generate.done", map[string]string{
			"count": strconv.Itoa(len(generated)),
		}))
		for i, g := range generated {
			b.WriteString("\n\n")
			b.WriteString(s.T.T("flow.generate.wallet_line", map[string]string{
				"index":    strconv.Itoa(i + 1),
				"address":  g.Wallet.Address,
				"mnemonic": g.Mnemonic,
			}))
		}
		b.WriteString("\n\n")
		b.WriteString(s.T.T("flow.generate.mnemonic_warning"))

		f.deps.Log.Info("generate flow completed",
			slog.Int64("user_id", userID),
			slog.Int("count", len(generated)),
		)

		return c.Send(b.String(), f.deps.Keyboard.MainMenu(s.T))
	})
	if errors.Is(err, state.ErrLocked) {
		return c.Send(s.T.T("errors.operation_in_progress"))
	}

	return err
}
