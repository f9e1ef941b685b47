package flows

import (
	"context"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
)

const mintDataStepEnterToken = "enter_token"

// MintData shows the protocol's metadata for a launched token: a
// single-value read-only flow.
type MintData struct {
	deps  *Deps
	store *state.Store[struct{}]
}

// NewMintData constructs the flow with its own state store.
func NewMintData(deps *Deps) *MintData {
	return &MintData{
		deps:  deps,
		store: state.New[struct{}](deps.Log, deps.StateOpts...),
	}
}

func (f *MintData) Name() string { return "mint_data" }

func (f *MintData) Abort(userID int64) { f.store.Clear(userID) }

func (f *MintData) Stats() state.Stats { return f.store.Stats() }

func (f *MintData) Run(ctx context.Context) { f.store.Run(ctx) }

// Start is the entry callback.
func (f *MintData) Start(c telebot.Context) error {
	s := handlers.GetSession(c)
	f.store.Set(c.Sender().ID, mintDataStepEnterToken, struct{}{})
	return respond(c, s.T.T("flow.mint_data.enter_token"), f.deps.Keyboard.Cancel(s.T))
}

func (f *MintData) AwaitsText(userID int64) bool {
	return f.store.Step(userID) == mintDataStepEnterToken
}

func (f *MintData) HandleText(c telebot.Context) error {
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

	f.store.Clear(userID)

	return c.Send(s.T.T("flow.mint_data.result", map[string]string{
		"name":   data.Name,
		"symbol": data.Symbol,
		"token":  data.TokenAddress,
		"supply": solana.FormatAmount(data.TotalSupply, data.Decimals),
		"era":    strconv.Itoa(data.CurrentEra),
		"fee":    solana.FormatAmount(data.MintFeeLamports, 9),
	}), f.deps.Keyboard.MainMenu(s.T))
}
