package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
)

// Builder creates the bot's inline keyboards, localized per user.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{log: log}
}

func (b *Builder) encode(unique, data string) string {
	payload, err := EncodeCallback(unique, data)
	if err != nil {
		if b.log != nil {
			b.log.Error("callback encoding failed",
				slog.String("unique", unique),
				slog.Any("error", err),
			)
		}
		return unique
	}
	return payload
}

// MainMenu builds the idle state menu.
func (b *Builder) MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("menu.generate_wallets"), Unique: "menu_generate_wallets"},
			InlineButton{Text: t.T("menu.my_wallets"), Unique: "menu_my_wallets"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.balances"), Unique: "menu_balances"},
			InlineButton{Text: t.T("menu.send_sol"), Unique: "menu_send_sol"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.send_spl"), Unique: "menu_send_spl"},
			InlineButton{Text: t.T("menu.distribute"), Unique: "menu_distribute"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.mint"), Unique: "menu_mint"},
			InlineButton{Text: t.T("menu.mint_data"), Unique: "menu_mint_data"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.refund"), Unique: "menu_refund"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.get_urc"), Unique: "menu_get_urc"},
			InlineButton{Text: t.T("menu.set_urc"), Unique: "menu_set_urc"},
		).
		AddRow(
			InlineButton{Text: t.T("menu.settings"), Unique: "menu_settings"},
			InlineButton{Text: t.T("menu.help"), Unique: "menu_help"},
		).
		Build(b.encode)
}

// BackToMenu builds a single button returning to the main menu.
func (b *Builder) BackToMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.back_to_menu"), Unique: "menu_main"}).
		Build(b.encode)
}

// Cancel builds the single cancel button shown while a flow awaits input.
// Cancelling always routes through the main menu.
func (b *Builder) Cancel(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.cancel"), Unique: "menu_main"}).
		Build(b.encode)
}

// Confirm builds confirm and cancel buttons for a flow's terminal step.
func (b *Builder) Confirm(t i18n.Translator, unique string) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("buttons.confirm"), Unique: unique},
			InlineButton{Text: t.T("buttons.cancel"), Unique: "menu_main"},
		).
		Build(b.encode)
}

// WalletPicker builds one button per wallet plus a cancel row. The callback
// payload is the wallet address.
func (b *Builder) WalletPicker(t i18n.Translator, unique string, wallets []domain.Wallet) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	for _, w := range wallets {
		kb.AddRow(InlineButton{Text: ShortAddress(w.Address), Unique: unique, Data: w.Address})
	}
	kb.AddRow(InlineButton{Text: t.T("buttons.cancel"), Unique: "menu_main"})
	return kb.Build(b.encode)
}

// Choice builds a single row of option buttons sharing one callback unique,
// plus a cancel row. Labels are resolved from labelPrefix + "." + value.
func (b *Builder) Choice(t i18n.Translator, unique, labelPrefix string, values ...string) *telebot.ReplyMarkup {
	row := make([]InlineButton, 0, len(values))
	for _, value := range values {
		row = append(row, InlineButton{Text: t.T(labelPrefix + "." + value), Unique: unique, Data: value})
	}
	return NewInlineKeyboard().
		AddRow(row...).
		AddRow(InlineButton{Text: t.T("buttons.cancel"), Unique: "menu_main"}).
		Build(b.encode)
}

// Transaction builds the buttons attached to a submitted-transaction reply:
// an explorer link, a status poll and a way back to the menu. shortID is the
// signature's cache id, kept under the callback payload limit.
func (b *Builder) Transaction(t i18n.Translator, explorerURL, shortID string) *telebot.ReplyMarkup {
	markup := NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.check_status"), Unique: "tx_status", Data: shortID}).
		AddRow(InlineButton{Text: t.T("buttons.back_to_menu"), Unique: "menu_main"}).
		Build(b.encode)

	explorer := telebot.InlineButton{Text: t.T("buttons.view_explorer"), URL: explorerURL}
	markup.InlineKeyboard = append([][]telebot.InlineButton{{explorer}}, markup.InlineKeyboard...)

	return markup
}

// SettingsMenu builds the settings screen reflecting current preferences.
func (b *Builder) SettingsMenu(t i18n.Translator, settings *domain.UserSettings) *telebot.ReplyMarkup {
	language := domain.LanguageEnglish
	network := domain.NetworkMainnet
	if settings != nil {
		language = settings.Language
		network = settings.Network
	}

	return NewInlineKeyboard().
		AddRow(InlineButton{
			Text:   t.T("settings.language_button", map[string]string{"language": t.T("languages." + language)}),
			Unique: "settings_language",
		}).
		AddRow(InlineButton{
			Text:   t.T("settings.network_button", map[string]string{"network": t.T("networks." + network)}),
			Unique: "settings_network",
		}).
		AddRow(InlineButton{Text: t.T("buttons.back_to_menu"), Unique: "menu_main"}).
		Build(b.encode)
}

// WalletActions builds the per-wallet detail buttons.
func (b *Builder) WalletActions(t i18n.Translator, address string) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("wallets.show_key"), Unique: "wallet_key", Data: address},
			InlineButton{Text: t.T("wallets.remove"), Unique: "wallet_remove", Data: address},
		).
		AddRow(InlineButton{Text: t.T("buttons.back"), Unique: "menu_my_wallets"}).
		Build(b.encode)
}

// ShortAddress renders an address as its first and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
