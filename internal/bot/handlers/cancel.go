package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
)

// NewCancelHandler drops the user's record in every flow and returns them to
// the main menu. Safe to invoke with nothing in progress.
func NewCancelHandler(reset func(userID int64), kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		if reset != nil {
			reset(sender.ID)
		}

		s := GetSession(c)
		return c.Send(s.T.T("cancel.done"), kb.MainMenu(s.T))
	}
}
