package handlers

import (
	"context"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
)

// CallbackData extracts the payload part of an inline callback.
func CallbackData(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}

	raw := strings.TrimPrefix(cb.Data, "\f")
	_, data, err := keyboard.DecodeCallback(raw)
	if err != nil {
		return ""
	}
	return data
}

// RequestContext returns the context the logging middleware attached to the
// update, falling back to a fresh one.
func RequestContext(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get("ctx").(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
