package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
)

const sessionKey = "session"

// Session carries the per-update user context resolved by the auth
// middleware: persisted preferences and a translator bound to them.
type Session struct {
	Settings *domain.UserSettings
	T        i18n.Translator
}

// PutSession attaches the session to the telebot context.
func PutSession(c telebot.Context, s *Session) {
	c.Set(sessionKey, s)
}

// GetSession returns the session attached to the context, or a usable
// zero session when the middleware did not run.
func GetSession(c telebot.Context) *Session {
	if s, ok := c.Get(sessionKey).(*Session); ok && s != nil {
		return s
	}

	defaults := domain.DefaultSettings(0)
	return &Session{Settings: &defaults, T: i18n.Nop()}
}

// Network is the chain network the session's operations run against.
func (s *Session) Network() string {
	if s.Settings == nil {
		return domain.NetworkMainnet
	}
	return s.Settings.Network
}
