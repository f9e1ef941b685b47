package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
)

// NewStartHandler greets the user and shows the main menu. Settings for
// first-time users are created by the auth middleware before this runs.
func NewStartHandler(kb *keyboard.Builder, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		s := GetSession(c)

		if log != nil {
			log.Info("user started bot", slog.Int64("user_id", sender.ID))
		}

		return c.Send(s.T.T("start.welcome"), kb.MainMenu(s.T))
	}
}

// NewMenuHandler shows the main menu. It is also the universal cancel: reset
// clears the user's record in every flow before the menu is rendered.
func NewMenuHandler(reset func(userID int64), kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if reset != nil {
			reset(sender.ID)
		}

		s := GetSession(c)

		if c.Callback() != nil {
			_ = c.Respond(&telebot.CallbackResponse{})
			if err := c.Edit(s.T.T("start.menu"), kb.MainMenu(s.T)); err == nil {
				return nil
			}
		}
		return c.Send(s.T.T("start.menu"), kb.MainMenu(s.T))
	}
}

// NewHelpHandler describes what the bot can do.
func NewHelpHandler(kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		s := GetSession(c)

		if c.Callback() != nil {
			_ = c.Respond(&telebot.CallbackResponse{})
			if err := c.Edit(s.T.T("help.text"), kb.BackToMenu(s.T)); err == nil {
				return nil
			}
		}
		return c.Send(s.T.T("help.text"), kb.BackToMenu(s.T))
	}
}
