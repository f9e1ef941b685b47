package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/sigcache"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
	"github.com/solmate-labs/solmate-bot/pkg/config"
)

func (c *textContext) Respond(_ ...*telebot.CallbackResponse) error { return nil }

type stubWalletRepo struct {
	wallets []domain.Wallet
}

func (r *stubWalletRepo) ListByUser(_ context.Context, userID int64) ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *stubWalletRepo) FindByAddress(_ context.Context, userID int64, address string) (*domain.Wallet, error) {
	for _, w := range r.wallets {
		if w.UserID == userID && w.Address == address {
			found := w
			return &found, nil
		}
	}
	return nil, errors.New("wallet not found")
}

func (r *stubWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	w.ID = int64(len(r.wallets) + 1)
	r.wallets = append(r.wallets, *w)
	return nil
}

func (r *stubWalletRepo) Remove(_ context.Context, userID int64, address string) error {
	for i, w := range r.wallets {
		if w.UserID == userID && w.Address == address {
			r.wallets = append(r.wallets[:i], r.wallets[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *stubWalletRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, w := range r.wallets {
		if w.UserID == userID {
			n++
		}
	}
	return n, nil
}

type stubSettingsRepo struct{}

func (stubSettingsRepo) Get(_ context.Context, userID int64) (*domain.UserSettings, error) {
	defaults := domain.DefaultSettings(userID)
	return &defaults, nil
}

func (stubSettingsRepo) Upsert(_ context.Context, _ *domain.UserSettings) error { return nil }

const testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

// fakeRPC answers the node methods the confirm handlers reach for with a
// canned balance and counts each method call.
type fakeRPC struct {
	srv     *httptest.Server
	balance uint64

	mu    sync.Mutex
	calls map[string]int
}

func newFakeRPC(t *testing.T, balance uint64) *fakeRPC {
	t.Helper()

	f := &fakeRPC{balance: balance, calls: make(map[string]int)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRPC) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any    `json:"id"`
		Method string `json:"method"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.calls[req.Method]++
	f.mu.Unlock()

	slot := map[string]any{"slot": 1}
	var result any
	switch req.Method {
	case "getBalance":
		result = map[string]any{"context": slot, "value": f.balance}
	case "getLatestBlockhash":
		result = map[string]any{"context": slot, "value": map[string]any{
			"blockhash":            validAddress,
			"lastValidBlockHeight": 100,
		}}
	case "getFeeForMessage":
		result = map[string]any{"context": slot, "value": 5000}
	case "sendTransaction":
		result = testSignature
	default:
		result = map[string]any{"context": slot, "value": nil}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newConfirmDeps(t *testing.T, rpc *fakeRPC) *Deps {
	t.Helper()

	log := testLogger()
	return &Deps{
		Wallets:  wallet.NewService(&stubWalletRepo{}, stubSettingsRepo{}, log),
		Chain:    solana.NewService(config.SolanaConfig{MainnetRPC: rpc.srv.URL, DevnetRPC: rpc.srv.URL}, log),
		Sigs:     sigcache.New(log, 0),
		Keyboard: keyboard.NewBuilder(log),
		Log:      log,
	}
}

func ownedWallet(t *testing.T, deps *Deps, userID int64) string {
	t.Helper()

	generated, err := deps.Wallets.Generate(context.Background(), userID, 1)
	require.NoError(t, err)
	return generated[0].Wallet.Address
}

func TestSendSOL_ConfirmSubmitsExactlyOnce(t *testing.T) {
	rpc := newFakeRPC(t, 10*solana.LamportsPerSOL)
	deps := newConfirmDeps(t, rpc)
	sender := ownedWallet(t, deps, 7)

	flow := NewSendSOL(deps)
	flow.store.Set(7, sendSOLStepConfirm, sendSOLPayload{
		Sender:    sender,
		Recipient: validAddress,
		Lamports:  solana.LamportsPerSOL,
	})

	ctx := textInput(7, "")
	require.NoError(t, flow.Confirm(ctx))

	assert.Equal(t, 1, rpc.count("sendTransaction"), "a confirmed transfer submits exactly one transaction")
	_, ok := flow.store.Get(7)
	assert.False(t, ok, "the record must not survive the terminal step")
	require.NotEmpty(t, ctx.sent)
	assert.Equal(t, "flow.send_sol.submitted", ctx.sent[len(ctx.sent)-1])
}

func TestSendSOL_ConfirmAbortsOnInsufficientBalance(t *testing.T) {
	rpc := newFakeRPC(t, 100)
	deps := newConfirmDeps(t, rpc)
	sender := ownedWallet(t, deps, 7)

	flow := NewSendSOL(deps)
	flow.store.Set(7, sendSOLStepConfirm, sendSOLPayload{
		Sender:    sender,
		Recipient: validAddress,
		Lamports:  solana.LamportsPerSOL,
	})

	ctx := textInput(7, "")
	require.NoError(t, flow.Confirm(ctx))

	assert.Zero(t, rpc.count("sendTransaction"), "an aborted transfer must not submit anything")
	_, ok := flow.store.Get(7)
	assert.False(t, ok, "an aborted confirm still drops the record")
	require.NotEmpty(t, ctx.sent)
	assert.Equal(t, "errors.insufficient_balance_detail", ctx.sent[len(ctx.sent)-1])
}

func TestSendSOL_ConfirmFailureClearsState(t *testing.T) {
	rpc := newFakeRPC(t, 10*solana.LamportsPerSOL)
	deps := newConfirmDeps(t, rpc)

	// the payload names a wallet the user does not own, so the owner lookup
	// fails before any lock is taken
	flow := NewSendSOL(deps)
	flow.store.Set(7, sendSOLStepConfirm, sendSOLPayload{
		Sender:    validAddress,
		Recipient: validAddress,
		Lamports:  1,
	})

	err := flow.Confirm(textInput(7, ""))
	require.Error(t, err)

	assert.Zero(t, rpc.count("sendTransaction"))
	_, ok := flow.store.Get(7)
	assert.False(t, ok, "a failed confirm must not leave the user stuck at the terminal step")
}

// tallyTranslator echoes the key plus its parameters so assertions can see
// the rendered numbers.
type tallyTranslator struct{}

func (tallyTranslator) Lang() string { return "en" }

func (tallyTranslator) T(key string, params ...map[string]string) string {
	if len(params) == 0 || len(params[0]) == 0 {
		return key
	}
	names := make([]string, 0, len(params[0]))
	for name := range params[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	out := key
	for _, name := range names {
		out += " " + name + "=" + params[0][name]
	}
	return out
}

func TestMint_ConfirmReportsEachAttemptAndTally(t *testing.T) {
	rpc := newFakeRPC(t, 10*solana.LamportsPerSOL)
	deps := newConfirmDeps(t, rpc)
	minter := ownedWallet(t, deps, 7)

	var mu sync.Mutex
	attempt := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempt++
		n := attempt
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n == 2 {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "mint limit reached"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    flipflop.MintResult{Signature: testSignature, Minted: 1000},
		})
	}))
	t.Cleanup(api.Close)

	deps.Protocol = flipflop.New(config.FlipflopConfig{
		BaseURL:       api.URL,
		QueryTimeout:  2 * time.Second,
		ActionTimeout: 2 * time.Second,
	}, testLogger())

	flow := NewMint(deps)
	flow.store.Set(7, mintStepConfirm, mintPayload{
		Token:   validAddress,
		Name:    "Flip",
		Symbol:  "FLIP",
		MintFee: 10_000_000,
		URC:     "launch01",
		Wallet:  minter,
		Count:   3,
	})

	ctx := textInput(7, "")
	handlers.PutSession(ctx, &handlers.Session{T: tallyTranslator{}})
	require.NoError(t, flow.Confirm(ctx))

	require.Len(t, ctx.sent, 4, "three progress lines and the final tally")
	assert.True(t, strings.HasPrefix(ctx.sent[0], "flow.mint.progress_ok"), "got %q", ctx.sent[0])
	assert.True(t, strings.HasPrefix(ctx.sent[1], "flow.mint.progress_failed"), "got %q", ctx.sent[1])
	assert.True(t, strings.HasPrefix(ctx.sent[2], "flow.mint.progress_ok"), "got %q", ctx.sent[2])
	assert.Equal(t, "flow.mint.result failed=1 successful=2 total=3", ctx.sent[3])

	_, ok := flow.store.Get(7)
	assert.False(t, ok)
}
