package bot

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
	CommandHelp   = "/help"
)

// Callback unique constants for the main menu. Flow-specific callbacks are
// declared next to their flows.
const (
	CallbackMainMenu        = "menu_main"
	CallbackGenerateWallets = "menu_generate_wallets"
	CallbackMyWallets       = "menu_my_wallets"
	CallbackBalances        = "menu_balances"
	CallbackSendSOL         = "menu_send_sol"
	CallbackSendSPL         = "menu_send_spl"
	CallbackDistribute      = "menu_distribute"
	CallbackMint            = "menu_mint"
	CallbackMintData        = "menu_mint_data"
	CallbackRefund          = "menu_refund"
	CallbackGetURC          = "menu_get_urc"
	CallbackSetURC          = "menu_set_urc"
	CallbackSettings        = "menu_settings"
	CallbackHelp            = "menu_help"
)
