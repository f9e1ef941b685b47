package handlers

import (
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
)

// Callback uniques of the wallet screens. CallbackMyWallets mirrors the main
// menu entry so the remove confirmation can route back to the list.
const (
	CallbackWalletsPage     = "wallets_page"
	CallbackWalletView      = "wallet_view"
	CallbackWalletKey       = "wallet_key"
	CallbackWalletRemove    = "wallet_remove"
	CallbackWalletRemoveYes = "wallet_remove_yes"
	CallbackMyWallets       = "menu_my_wallets"
)

const walletsPerPage = 5

// NewMyWalletsHandler lists the user's wallets, five per page.
func NewMyWalletsHandler(wallets *wallet.Service, kb *keyboard.Builder, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		page := 1
		if n, err := strconv.Atoi(CallbackData(c)); err == nil && n > 0 {
			page = n
		}

		list, err := wallets.List(RequestContext(c), sender.ID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return editOrSend(c, s.T.T("wallets.none"), kb.BackToMenu(s.T))
		}

		totalPages := (len(list) + walletsPerPage - 1) / walletsPerPage
		if page > totalPages {
			page = totalPages
		}
		start := (page - 1) * walletsPerPage
		end := start + walletsPerPage
		if end > len(list) {
			end = len(list)
		}

		ik := keyboard.NewInlineKeyboard()
		for _, w := range list[start:end] {
			ik.AddRow(keyboard.InlineButton{
				Text:   keyboard.ShortAddress(w.Address),
				Unique: CallbackWalletView,
				Data:   w.Address,
			})
		}
		if totalPages > 1 {
			ik.AddRow(keyboard.PaginationButtons(s.T, CallbackWalletsPage, page, totalPages)...)
		}
		ik.AddRow(keyboard.InlineButton{Text: s.T.T("buttons.back_to_menu"), Unique: "menu_main"})

		markup := ik.Build(func(unique, data string) string {
			payload, err := keyboard.EncodeCallback(unique, data)
			if err != nil {
				if log != nil {
					log.Error("wallet list callback encoding failed", slog.Any("error", err))
				}
				return unique
			}
			return payload
		})

		return editOrSend(c, s.T.T("wallets.list_title", map[string]string{
			"count": strconv.Itoa(len(list)),
		}), markup)
	}
}

// NewWalletViewHandler shows one wallet with its actions.
func NewWalletViewHandler(wallets *wallet.Service, kb *keyboard.Builder) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		address := CallbackData(c)
		w, err := wallets.Get(RequestContext(c), sender.ID, address)
		if err != nil {
			return err
		}

		return editOrSend(c, s.T.T("wallets.detail", map[string]string{
			"address": w.Address,
			"created": w.CreatedAt.Format("2006-01-02"),
		}), kb.WalletActions(s.T, w.Address))
	}
}

// NewWalletKeyHandler reveals a wallet's private key. The reply carries a
// warning; the message itself stays in the user's private chat history.
func NewWalletKeyHandler(wallets *wallet.Service, kb *keyboard.Builder, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		address := CallbackData(c)
		w, err := wallets.Get(RequestContext(c), sender.ID, address)
		if err != nil {
			return err
		}

		if log != nil {
			log.Warn("private key revealed", slog.Int64("user_id", sender.ID), slog.String("address", address))
		}

		_ = c.Respond(&telebot.CallbackResponse{})
		return c.Send(s.T.T("wallets.key_reveal", map[string]string{
			"address": w.Address,
			"key":     w.PrivateKey,
		}), kb.BackToMenu(s.T))
	}
}

// NewWalletRemoveHandler asks for confirmation before deleting a wallet.
func NewWalletRemoveHandler(kb *keyboard.Builder) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		address := CallbackData(c)

		ik := keyboard.NewInlineKeyboard().
			AddRow(
				keyboard.InlineButton{Text: s.T.T("buttons.confirm"), Unique: CallbackWalletRemoveYes, Data: address},
				keyboard.InlineButton{Text: s.T.T("buttons.cancel"), Unique: CallbackMyWallets},
			)

		markup := ik.Build(func(unique, data string) string {
			payload, err := keyboard.EncodeCallback(unique, data)
			if err != nil {
				return unique
			}
			return payload
		})

		return editOrSend(c, s.T.T("wallets.remove_confirm", map[string]string{
			"address": keyboard.ShortAddress(address),
		}), markup)
	}
}

// NewWalletRemoveConfirmHandler deletes the wallet. The key is gone for good
// unless the user saved the mnemonic shown at generation time.
func NewWalletRemoveConfirmHandler(wallets *wallet.Service, kb *keyboard.Builder, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		address := CallbackData(c)
		if err := wallets.Remove(RequestContext(c), sender.ID, address); err != nil {
			return err
		}

		if log != nil {
			log.Info("wallet removed", slog.Int64("user_id", sender.ID), slog.String("address", address))
		}

		return editOrSend(c, s.T.T("wallets.removed", map[string]string{
			"address": keyboard.ShortAddress(address),
		}), kb.MainMenu(s.T))
	}
}

// NewBalancesHandler reports the SOL balance of every wallet on the user's
// selected network.
func NewBalancesHandler(wallets *wallet.Service, chain *solana.Service, kb *keyboard.Builder, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		s := GetSession(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		ctx := RequestContext(c)

		list, err := wallets.List(ctx, sender.ID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return editOrSend(c, s.T.T("wallets.none"), kb.BackToMenu(s.T))
		}

		network := wallet.Network(s.Settings)

		var lines []string
		var total uint64
		for _, w := range list {
			balance, err := chain.Balance(ctx, network, w.Address)
			if err != nil {
				if log != nil {
					log.Error("balance lookup failed", slog.String("address", w.Address), slog.Any("error", err))
				}
				lines = append(lines, s.T.T("balances.line_error", map[string]string{
					"address": keyboard.ShortAddress(w.Address),
				}))
				continue
			}
			total += balance
			lines = append(lines, s.T.T("balances.line", map[string]string{
				"address": keyboard.ShortAddress(w.Address),
				"balance": solana.FormatAmount(balance, 9),
			}))
		}

		return editOrSend(c, s.T.T("balances.summary", map[string]string{
			"network": s.T.T("networks." + string(network)),
			"lines":   strings.Join(lines, "\n"),
			"total":   solana.FormatAmount(total, 9),
		}), kb.BackToMenu(s.T))
	}
}

func editOrSend(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	if c.Callback() != nil {
		_ = c.Respond(&telebot.CallbackResponse{})
		if err := c.Edit(text, markup); err == nil {
			return nil
		}
	}
	return c.Send(text, markup)
}
