package bot

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	errors "github.com/solmate-labs/solmate-bot/internal/errors"
)

// replyContext additionally captures what the middlewares send back.
type replyContext struct {
	routeContext
	store     map[string]interface{}
	sentTexts []string
	sentOpts  [][]interface{}
}

func (c *replyContext) Get(key string) interface{} { return c.store[key] }

func (c *replyContext) Set(key string, value interface{}) {
	if c.store == nil {
		c.store = make(map[string]interface{})
	}
	c.store[key] = value
}

func (c *replyContext) Send(what interface{}, opts ...interface{}) error {
	if text, ok := what.(string); ok {
		c.sentTexts = append(c.sentTexts, text)
	}
	c.sentOpts = append(c.sentOpts, opts)
	return nil
}

func assertMenuAttached(t *testing.T, opts []interface{}) {
	t.Helper()

	for _, opt := range opts {
		if markup, ok := opt.(*telebot.ReplyMarkup); ok && markup != nil {
			assert.NotEmpty(t, markup.InlineKeyboard, "the reply keyboard must not be empty")
			return
		}
	}
	t.Fatal("failure reply carries no keyboard, leaving the user without a way forward")
}

func TestErrorHandlingMiddleware_FailureReplyCarriesMenu(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := ErrorHandlingMiddleware(errors.NewHandler(log, false), keyboard.NewBuilder(log))

	handler := mw(func(telebot.Context) error {
		return errors.NewValidationError("bad amount")
	})

	ctx := &replyContext{routeContext: routeContext{sender: &telebot.User{ID: 1}}}
	require.NoError(t, handler(ctx), "handled errors must not leak to telebot")

	require.Len(t, ctx.sentTexts, 1)
	assertMenuAttached(t, ctx.sentOpts[0])
}

func TestRecoveryMiddleware_PanicReplyCarriesMenu(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := RecoveryMiddleware(log, errors.NewHandler(log, false), keyboard.NewBuilder(log))

	handler := mw(func(telebot.Context) error {
		panic("boom")
	})

	ctx := &replyContext{routeContext: routeContext{sender: &telebot.User{ID: 1}}}
	require.NoError(t, handler(ctx))

	require.Len(t, ctx.sentTexts, 1)
	assertMenuAttached(t, ctx.sentOpts[0])
}
