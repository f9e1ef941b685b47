package bot

import (
	"database/sql"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/flows"
	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	errors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
	"github.com/solmate-labs/solmate-bot/internal/idempotency"
	"github.com/solmate-labs/solmate-bot/internal/middleware"
	"github.com/solmate-labs/solmate-bot/internal/sigcache"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/state"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
	"github.com/solmate-labs/solmate-bot/pkg/config"
	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot            *telebot.Bot
	db                 *sql.DB
	log                *slog.Logger
	cfg                config.Config
	registry           *flows.Registry
	rateLimitMw        *middleware.RateLimitMiddleware
	router             *Router
	keyboard           *keyboard.Builder
	errHandler         *errors.Handler
	idempotencyManager idempotency.Manager
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	db *sql.DB,
	wallets *wallet.Service,
	chain *solana.Service,
	protocol *flipflop.Client,
	sigs *sigcache.Cache,
	catalog *i18n.Manager,
	idempotencyManager idempotency.Manager,
	rateLimitMw *middleware.RateLimitMiddleware,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Telegram.Token,
	}

	if cfg.Telegram.WebhookURL != "" {
		settings.Poller = &telebot.Webhook{
			Listen:   ":8443",
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Telegram.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Telegram.PollTimeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(log)
	errHandler := errors.NewHandler(log, cfg.Sentry.DSN != "")

	deps := &flows.Deps{
		Wallets:  wallets,
		Chain:    chain,
		Protocol: protocol,
		Sigs:     sigs,
		Keyboard: kb,
		Log:      log,
		StateOpts: []state.Option{
			state.WithTTL(cfg.State.TTL),
			state.WithSweepInterval(cfg.State.SweepInterval),
			state.WithEvictionObserver(metrics.RecordEvictions),
		},
	}
	if rateLimitMw != nil {
		deps.Guard = rateLimitMw.AllowTransfer
	}

	sendSOL := flows.NewSendSOL(deps)
	sendSPL := flows.NewSendSPL(deps)
	distribute := flows.NewDistribute(deps)
	mint := flows.NewMint(deps)
	refund := flows.NewRefund(deps)
	getURC := flows.NewGetURC(deps)
	setURC := flows.NewSetURC(deps)
	mintData := flows.NewMintData(deps)
	generate := flows.NewGenerate(deps)

	registry := flows.NewRegistry(log,
		sendSOL, sendSPL, distribute, mint, refund, getURC, setURC, mintData, generate,
	)
	router := NewRouter(registry, log)

	b := &Bot{
		telebot:            tb,
		db:                 db,
		log:                log,
		cfg:                cfg,
		registry:           registry,
		rateLimitMw:        rateLimitMw,
		router:             router,
		keyboard:           kb,
		errHandler:         errHandler,
		idempotencyManager: idempotencyManager,
	}

	b.setupMiddlewares(wallets, catalog)
	b.setupCommands(kb)
	b.setupMenu(registry, sendSOL, sendSPL, distribute, mint, refund, getURC, setURC, mintData, generate)
	b.setupHandlers(wallets, chain, sigs, catalog, kb)

	if b.rateLimitMw != nil {
		b.telebot.Use(b.rateLimitMw.Handle)
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Registry exposes the flow registry so the application can run expiry sweeps
// and report flow gauges.
func (b *Bot) Registry() *flows.Registry {
	return b.registry
}

func (b *Bot) setupMiddlewares(wallets *wallet.Service, catalog *i18n.Manager) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler, b.keyboard))
	b.router.Use(middleware.Idempotency(b.idempotencyManager, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler, b.keyboard))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(AuthMiddleware(wallets, catalog, b.log))
	b.router.Use(middleware.Metrics)
}

func (b *Bot) setupCommands(kb *keyboard.Builder) {
	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(kb, b.log))
	b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(b.registry.AbortAll, kb, b.log))
	b.router.RegisterCommand(CommandHelp, handlers.NewHelpHandler(kb))
}

// setupMenu binds main-menu buttons. Flow entries reset the user's records in
// every flow first, so a user never sits in two conversations at once.
func (b *Bot) setupMenu(
	registry *flows.Registry,
	sendSOL *flows.SendSOL,
	sendSPL *flows.SendSPL,
	distribute *flows.Distribute,
	mint *flows.Mint,
	refund *flows.Refund,
	getURC *flows.GetURC,
	setURC *flows.SetURC,
	mintData *flows.MintData,
	generate *flows.Generate,
) {
	entry := func(name string, start handlers.Handler) handlers.CallbackHandler {
		return func(c telebot.Context) error {
			if c.Sender() != nil {
				registry.AbortAll(c.Sender().ID)
			}
			metrics.RecordFlowEvent(name, "start")
			return start(c)
		}
	}

	b.router.RegisterCallback(CallbackMainMenu, handlers.CallbackHandler(handlers.NewMenuHandler(registry.AbortAll, b.keyboard)))
	b.router.RegisterCallback(CallbackHelp, handlers.CallbackHandler(handlers.NewHelpHandler(b.keyboard)))

	b.router.RegisterCallback(CallbackGenerateWallets, entry(generate.Name(), generate.Start))
	b.router.RegisterCallback(CallbackSendSOL, entry(sendSOL.Name(), sendSOL.Start))
	b.router.RegisterCallback(CallbackSendSPL, entry(sendSPL.Name(), sendSPL.Start))
	b.router.RegisterCallback(CallbackDistribute, entry(distribute.Name(), distribute.Start))
	b.router.RegisterCallback(CallbackMint, entry(mint.Name(), mint.Start))
	b.router.RegisterCallback(CallbackRefund, entry(refund.Name(), refund.Start))
	b.router.RegisterCallback(CallbackGetURC, entry(getURC.Name(), getURC.Start))
	b.router.RegisterCallback(CallbackSetURC, entry(setURC.Name(), setURC.Start))
	b.router.RegisterCallback(CallbackMintData, entry(mintData.Name(), mintData.Start))

	b.router.RegisterCallback(flows.CallbackSendSOLWallet, sendSOL.SelectWallet)
	b.router.RegisterCallback(flows.CallbackSendSOLConfirm, sendSOL.Confirm)
	b.router.RegisterCallback(flows.CallbackSendSPLWallet, sendSPL.SelectWallet)
	b.router.RegisterCallback(flows.CallbackSendSPLConfirm, sendSPL.Confirm)
	b.router.RegisterCallback(flows.CallbackDistributeAsset, distribute.SelectAsset)
	b.router.RegisterCallback(flows.CallbackDistributeMode, distribute.SelectMode)
	b.router.RegisterCallback(flows.CallbackDistributeWallet, distribute.SelectSender)
	b.router.RegisterCallback(flows.CallbackDistributeRecipient, distribute.SelectRecipient)
	b.router.RegisterCallback(flows.CallbackDistributeConfirm, distribute.Confirm)
	b.router.RegisterCallback(flows.CallbackMintWallet, mint.SelectWallet)
	b.router.RegisterCallback(flows.CallbackMintConfirm, mint.Confirm)
	b.router.RegisterCallback(flows.CallbackRefundWallet, refund.SelectWallet)
	b.router.RegisterCallback(flows.CallbackRefundConfirm, refund.Confirm)
	b.router.RegisterCallback(flows.CallbackSetURCWallet, setURC.SelectWallet)
	b.router.RegisterCallback(flows.CallbackSetURCConfirm, setURC.Confirm)
}

func (b *Bot) setupHandlers(
	wallets *wallet.Service,
	chain *solana.Service,
	sigs *sigcache.Cache,
	catalog *i18n.Manager,
	kb *keyboard.Builder,
) {
	myWallets := handlers.NewMyWalletsHandler(wallets, kb, b.log)
	b.router.RegisterCallback(CallbackMyWallets, handlers.CallbackHandler(myWallets))
	b.router.RegisterCallback(handlers.CallbackWalletsPage, handlers.CallbackHandler(myWallets))
	b.router.RegisterCallback(handlers.CallbackWalletView, handlers.NewWalletViewHandler(wallets, kb))
	b.router.RegisterCallback(handlers.CallbackWalletKey, handlers.NewWalletKeyHandler(wallets, kb, b.log))
	b.router.RegisterCallback(handlers.CallbackWalletRemove, handlers.NewWalletRemoveHandler(kb))
	b.router.RegisterCallback(handlers.CallbackWalletRemoveYes, handlers.NewWalletRemoveConfirmHandler(wallets, kb, b.log))
	b.router.RegisterCallback(CallbackBalances, handlers.CallbackHandler(handlers.NewBalancesHandler(wallets, chain, kb, b.log)))

	b.router.RegisterCallback(CallbackSettings, handlers.CallbackHandler(handlers.NewSettingsHandler(kb)))
	b.router.RegisterCallback(handlers.CallbackSettingsLanguage, handlers.NewLanguagePickerHandler(kb, catalog))
	b.router.RegisterCallback(handlers.CallbackSettingsSetLang, handlers.NewSetLanguageHandler(wallets, kb, catalog, b.log))
	b.router.RegisterCallback(handlers.CallbackSettingsNetwork, handlers.NewNetworkPickerHandler(kb))
	b.router.RegisterCallback(handlers.CallbackSettingsSetNetwork, handlers.NewSetNetworkHandler(wallets, kb, b.log))

	b.router.RegisterCallback(handlers.CallbackTxStatus, handlers.NewTxStatusHandler(chain, sigs))
}
