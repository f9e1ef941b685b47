// Package flows implements the bot's multi-step conversations. Each flow
// owns a typed state store holding at most one record per user; the record's
// step tag decides which flow claims the user's next plain-text message.
package flows

import (
	"context"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/sigcache"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// GuardFunc is consulted before every side-effecting submission. A non-nil
// error aborts the submission and is rendered to the user.
type GuardFunc func(ctx context.Context, userID int64) error

// Deps bundles the services every flow draws on.
type Deps struct {
	Wallets  *wallet.Service
	Chain    *solana.Service
	Protocol *flipflop.Client
	Sigs     *sigcache.Cache
	Keyboard *keyboard.Builder
	Guard    GuardFunc
	Log      *slog.Logger

	// StateOpts is applied to every flow's state store.
	StateOpts []state.Option
}

func (d *Deps) guard(ctx context.Context, userID int64) error {
	if d.Guard == nil {
		return nil
	}
	return d.Guard(ctx, userID)
}

// Flow is one multi-step conversation.
type Flow interface {
	// Name identifies the flow in logs and metrics.
	Name() string
	// AwaitsText reports whether the user's current step in this flow
	// expects a plain-text message.
	AwaitsText(userID int64) bool
	// HandleText consumes a plain-text message for the user's current step.
	HandleText(c telebot.Context) error
	// Abort drops the user's record and lock, if any.
	Abort(userID int64)
	// Stats snapshots the flow's store.
	Stats() state.Stats
	// Run executes the store's expiry sweep until ctx is cancelled.
	Run(ctx context.Context)
}

// Registry holds all flows in fixed priority order and routes plain text to
// the single flow whose step currently awaits it.
type Registry struct {
	flows []Flow
	log   *slog.Logger
}

// NewRegistry builds a registry. Order matters: the first flow that claims a
// user's text wins.
func NewRegistry(log *slog.Logger, flows ...Flow) *Registry {
	return &Registry{flows: flows, log: log}
}

// HandleText offers the message to each flow in order. It reports false when
// no flow claimed it; stray text is then ignored by the caller.
func (r *Registry) HandleText(c telebot.Context) (bool, error) {
	userID := c.Sender().ID
	for _, f := range r.flows {
		if f.AwaitsText(userID) {
			metrics.RecordFlowEvent(f.Name(), "text")
			return true, f.HandleText(c)
		}
	}
	return false, nil
}

// AbortAll clears the user's record in every flow. Starting a flow and
// cancelling both route through here, so a user never holds records in two
// flows at once.
func (r *Registry) AbortAll(userID int64) {
	for _, f := range r.flows {
		f.Abort(userID)
	}
}

// ReportGauges publishes each flow's live record count to Prometheus.
func (r *Registry) ReportGauges() {
	for _, f := range r.flows {
		metrics.SetActiveFlows(f.Name(), f.Stats().Records)
	}
}

// ActiveRecords counts live flow records across all flows.
func (r *Registry) ActiveRecords() int {
	total := 0
	for _, f := range r.flows {
		total += f.Stats().Records
	}
	return total
}

// Run starts every flow's expiry sweep and blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range r.flows {
		wg.Add(1)
		go func(f Flow) {
			defer wg.Done()
			f.Run(ctx)
		}(f)
	}
	wg.Wait()
}

// callbackPayload extracts the data part of an inline callback.
func callbackPayload(c telebot.Context) string { return handlers.CallbackData(c) }

// requestContext returns the context the logging middleware attached to the update.
func requestContext(c telebot.Context) context.Context { return handlers.RequestContext(c) }

// respond edits the message behind a callback, or sends a new one for plain
// text. Callbacks are acknowledged either way so the client stops its spinner.
func respond(c telebot.Context, text string, opts ...interface{}) error {
	if c.Callback() != nil {
		_ = c.Respond(&telebot.CallbackResponse{})
		if err := c.Edit(text, opts...); err == nil {
			return nil
		}
	}
	return c.Send(text, opts...)
}

// expired tells the user their flow state is gone and shows the menu again.
func (d *Deps) expired(c telebot.Context) error {
	s := handlers.GetSession(c)
	return respond(c, s.T.T("errors.session_expired"), d.Keyboard.MainMenu(s.T))
}

// submittedTx stores the signature for later status checks and replies with
// the rendered text plus explorer and status buttons.
func (d *Deps) submittedTx(c telebot.Context, network solana.Network, key string, params map[string]string, signature string) error {
	s := handlers.GetSession(c)
	if params == nil {
		params = map[string]string{}
	}
	params["signature"] = signature

	shortID := d.Sigs.Put(signature)
	return respond(c, s.T.T(key, params), d.Keyboard.Transaction(s.T, solana.ExplorerTxURL(network, signature), shortID))
}
