package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
)

// textContext fakes the pieces of telebot.Context a text step touches.
type textContext struct {
	telebot.Context
	sender *telebot.User
	text   string
	store  map[string]interface{}
	sent   []string
}

func (c *textContext) Sender() *telebot.User { return c.sender }

func (c *textContext) Text() string { return c.text }

func (c *textContext) Callback() *telebot.Callback { return nil }

func (c *textContext) Get(key string) interface{} { return c.store[key] }

func (c *textContext) Set(key string, value interface{}) {
	if c.store == nil {
		c.store = make(map[string]interface{})
	}
	c.store[key] = value
}

func (c *textContext) Send(what interface{}, _ ...interface{}) error {
	if text, ok := what.(string); ok {
		c.sent = append(c.sent, text)
	}
	return nil
}

func textInput(userID int64, text string) *textContext {
	return &textContext{sender: &telebot.User{ID: userID}, text: text}
}

func newTextDeps() *Deps {
	log := testLogger()
	return &Deps{Keyboard: keyboard.NewBuilder(log), Log: log}
}

const validAddress = "So11111111111111111111111111111111111111112"

func TestSendSOL_InvalidRecipientKeepsStep(t *testing.T) {
	flow := NewSendSOL(newTextDeps())
	flow.store.Set(1, sendSOLStepEnterRecipient, sendSOLPayload{Sender: validAddress})

	ctx := textInput(1, "not-an-address")
	require.NoError(t, flow.HandleText(ctx))

	rec, ok := flow.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, sendSOLStepEnterRecipient, rec.Step, "rejected input must not advance the step")
	assert.Empty(t, rec.Payload.Recipient, "rejected input must not touch the payload")
	require.Len(t, ctx.sent, 1)
	assert.Equal(t, "errors.invalid_address", ctx.sent[0])
}

func TestSendSOL_ValidRecipientAdvances(t *testing.T) {
	flow := NewSendSOL(newTextDeps())
	flow.store.Set(1, sendSOLStepEnterRecipient, sendSOLPayload{Sender: validAddress})

	require.NoError(t, flow.HandleText(textInput(1, validAddress)))

	rec, ok := flow.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, sendSOLStepEnterAmount, rec.Step)
	assert.Equal(t, validAddress, rec.Payload.Recipient)
	assert.Equal(t, validAddress, rec.Payload.Sender, "earlier fields survive the advance")
}

func TestSendSOL_InvalidAmountKeepsStep(t *testing.T) {
	flow := NewSendSOL(newTextDeps())
	flow.store.Set(1, sendSOLStepEnterAmount, sendSOLPayload{Sender: validAddress, Recipient: validAddress})

	for _, input := range []string{"abc", "-1", "0", "0.1234567891"} {
		ctx := textInput(1, input)
		require.NoError(t, flow.HandleText(ctx))

		rec, ok := flow.store.Get(1)
		require.True(t, ok)
		assert.Equal(t, sendSOLStepEnterAmount, rec.Step, "input %q must be rejected", input)
		assert.Zero(t, rec.Payload.Lamports)
	}
}

func TestSendSOL_AmountAdvancesToConfirm(t *testing.T) {
	flow := NewSendSOL(newTextDeps())
	flow.store.Set(1, sendSOLStepEnterAmount, sendSOLPayload{Sender: validAddress, Recipient: validAddress})

	require.NoError(t, flow.HandleText(textInput(1, "0.5")))

	rec, ok := flow.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, sendSOLStepConfirm, rec.Step)
	assert.Equal(t, uint64(500_000_000), rec.Payload.Lamports)
}

func TestSendSOL_AwaitsTextOnlyOnTextSteps(t *testing.T) {
	flow := NewSendSOL(newTextDeps())

	assert.False(t, flow.AwaitsText(1), "no record means no claim on text")

	flow.store.Set(1, sendSOLStepSelectSender, sendSOLPayload{})
	assert.False(t, flow.AwaitsText(1))

	flow.store.Set(1, sendSOLStepEnterRecipient, sendSOLPayload{})
	assert.True(t, flow.AwaitsText(1))

	flow.store.Set(1, sendSOLStepConfirm, sendSOLPayload{})
	assert.False(t, flow.AwaitsText(1))
}
