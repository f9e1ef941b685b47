package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/bot/handlers"
	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
	errors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
	"github.com/solmate-labs/solmate-bot/pkg/logger"
	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, kb *keyboard.Builder) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					messageKey := "errors.unknown"
					if errHandler != nil {
						appErr := errors.NewInvalidTransactionError(fmt.Errorf("panic recovered: %v", r))
						if key, _ := errHandler.Handle(handlers.RequestContext(c), appErr); key != "" {
							messageKey = key
						}
					}

					if c != nil {
						s := handlers.GetSession(c)
						if sendErr := c.Send(s.T.T(messageKey), kb.MainMenu(s.T)); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures. Handlers return errors carrying localization keys; the
// key is translated with the sender's language here. Every failure reply
// carries the main menu so the user always has a way forward.
func ErrorHandlingMiddleware(errHandler *errors.Handler, kb *keyboard.Builder) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			recordError(err)

			messageKey := "errors.unknown"
			if errHandler != nil {
				if key, _ := errHandler.Handle(handlers.RequestContext(c), err); key != "" {
					messageKey = key
				}
			}

			if c != nil {
				s := handlers.GetSession(c)
				_ = c.Send(s.T.T(messageKey), kb.MainMenu(s.T))
			}

			return nil
		}
	}
}

func recordError(err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		metrics.RecordError(appErr.Code, string(appErr.Severity))
		return
	}
	metrics.RecordError("unknown", string(errors.SeverityHigh))
}

// LoggingMiddleware attaches a correlation id to the update and logs basic
// telemetry around handler execution.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			correlationID := uuid.NewString()

			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = cb.Data
				} else {
					action = c.Text()
				}
				c.Set("ctx", logger.ContextWithCorrelationID(context.Background(), correlationID))
			}

			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// AuthMiddleware resolves the sender's persisted preferences, creating
// defaults on first contact, and stores a session with a bound translator
// for everything downstream.
func AuthMiddleware(wallets *wallet.Service, catalog *i18n.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if wallets == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			userID := c.Sender().ID

			settings, err := wallets.Settings(handlers.RequestContext(c), userID)
			if err != nil {
				// degrade to defaults rather than refusing the update
				log.Error("failed to load user settings", slog.Int64("user_id", userID), slog.Any("error", err))
				handlers.PutSession(c, &handlers.Session{T: catalog.Translator("")})
				return next(c)
			}

			handlers.PutSession(c, &handlers.Session{
				Settings: settings,
				T:        catalog.Translator(settings.Language),
			})

			return next(c)
		}
	}
}
