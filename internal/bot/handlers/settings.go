package handlers

import (
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the settings screen.
const (
	CallbackSettingsLanguage   = "settings_language"
	CallbackSettingsNetwork    = "settings_network"
	CallbackSettingsSetLang    = "settings_set_lang"
	CallbackSettingsSetNetwork = "settings_set_network"
)

// NewSettingsHandler shows the settings screen.
func NewSettingsHandler(kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		s := GetSession(c)

		text := s.T.T("settings.title", map[string]string{
			"language": s.T.T("languages." + s.Settings.Language),
			"network":  s.T.T("networks." + s.Settings.Network),
		})

		if c.Callback() != nil {
			_ = c.Respond(&telebot.CallbackResponse{})
			if err := c.Edit(text, kb.SettingsMenu(s.T, s.Settings)); err == nil {
				return nil
			}
		}
		return c.Send(text, kb.SettingsMenu(s.T, s.Settings))
	}
}

// NewLanguagePickerHandler offers the available languages.
func NewLanguagePickerHandler(kb *keyboard.Builder, catalog *i18n.Manager) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)

		languages := catalog.Languages()
		if len(languages) == 0 {
			languages = []string{domain.LanguageEnglish}
		}

		_ = c.Respond(&telebot.CallbackResponse{})
		markup := kb.Choice(s.T, CallbackSettingsSetLang, "languages", languages...)
		if err := c.Edit(s.T.T("settings.pick_language"), markup); err != nil {
			return c.Send(s.T.T("settings.pick_language"), markup)
		}
		return nil
	}
}

// NewSetLanguageHandler persists the language pick and re-renders the
// settings screen in the new language.
func NewSetLanguageHandler(wallets *wallet.Service, kb *keyboard.Builder, catalog *i18n.Manager, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		s := GetSession(c)
		lang := strings.TrimSpace(CallbackData(c))
		if lang == "" {
			return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.validation")})
		}

		if err := wallets.SetLanguage(RequestContext(c), sender.ID, lang); err != nil {
			return err
		}
		s.Settings.Language = lang
		s.T = catalog.Translator(lang)

		if log != nil {
			log.Info("language changed", slog.Int64("user_id", sender.ID), slog.String("language", lang))
		}

		return renderSettings(c, s, kb)
	}
}

// NewNetworkPickerHandler offers the supported networks.
func NewNetworkPickerHandler(kb *keyboard.Builder) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)

		_ = c.Respond(&telebot.CallbackResponse{})
		markup := kb.Choice(s.T, CallbackSettingsSetNetwork, "networks", domain.NetworkMainnet, domain.NetworkDevnet)
		if err := c.Edit(s.T.T("settings.pick_network"), markup); err != nil {
			return c.Send(s.T.T("settings.pick_network"), markup)
		}
		return nil
	}
}

// NewSetNetworkHandler persists the network pick.
func NewSetNetworkHandler(wallets *wallet.Service, kb *keyboard.Builder, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		s := GetSession(c)
		network := strings.TrimSpace(CallbackData(c))
		if network != domain.NetworkMainnet && network != domain.NetworkDevnet {
			return c.Respond(&telebot.CallbackResponse{Text: s.T.T("errors.validation")})
		}

		if err := wallets.SetNetwork(RequestContext(c), sender.ID, network); err != nil {
			return err
		}
		s.Settings.Network = network

		if log != nil {
			log.Info("network changed", slog.Int64("user_id", sender.ID), slog.String("network", network))
		}

		return renderSettings(c, s, kb)
	}
}

func renderSettings(c telebot.Context, s *Session, kb *keyboard.Builder) error {
	text := s.T.T("settings.title", map[string]string{
		"language": s.T.T("languages." + s.Settings.Language),
		"network":  s.T.T("networks." + s.Settings.Network),
	})

	_ = c.Respond(&telebot.CallbackResponse{})
	if err := c.Edit(text, kb.SettingsMenu(s.T, s.Settings)); err != nil {
		return c.Send(text, kb.SettingsMenu(s.T, s.Settings))
	}
	return nil
}
