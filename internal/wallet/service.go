// Package wallet manages custodial keypairs and per-user preferences.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"

	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/repository"
	"github.com/solmate-labs/solmate-bot/internal/solana"
)

// MaxBatchSize caps how many wallets one generate request may create.
const MaxBatchSize = 10

// Generated pairs a persisted wallet with its mnemonic. The mnemonic is shown
// to the user exactly once and never stored.
type Generated struct {
	Wallet   domain.Wallet
	Mnemonic string
}

// Service provides business operations over wallets and settings.
type Service struct {
	wallets  repository.WalletRepository
	settings repository.SettingsRepository
	log      *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(wallets repository.WalletRepository, settings repository.SettingsRepository, log *slog.Logger) *Service {
	return &Service{wallets: wallets, settings: settings, log: log}
}

// Generate creates count new keypairs for the user and persists them.
func (s *Service) Generate(ctx context.Context, userID int64, count int) ([]Generated, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, fmt.Errorf("wallet count %d out of range 1..%d", count, MaxBatchSize)
	}

	generated := make([]Generated, 0, count)
	for i := 0; i < count; i++ {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return nil, fmt.Errorf("generate entropy: %w", err)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}

		seed := bip39.NewSeed(mnemonic, "")
		account, err := types.AccountFromSeed(seed[:32])
		if err != nil {
			return nil, fmt.Errorf("derive keypair: %w", err)
		}

		w := domain.Wallet{
			UserID:     userID,
			Address:    account.PublicKey.ToBase58(),
			PrivateKey: base58.Encode(account.PrivateKey),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.wallets.Create(ctx, &w); err != nil {
			s.logError("generate.create", userID, err)
			return nil, err
		}

		generated = append(generated, Generated{Wallet: w, Mnemonic: mnemonic})
	}

	s.log.Info("wallets generated", slog.Int64("user_id", userID), slog.Int("count", count))

	return generated, nil
}

// List returns the user's wallets in creation order.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Wallet, error) {
	wallets, err := s.wallets.ListByUser(ctx, userID)
	if err != nil {
		s.logError("list", userID, err)
		return nil, err
	}

	return wallets, nil
}

// Get fetches one wallet scoped to its owner.
func (s *Service) Get(ctx context.Context, userID int64, address string) (*domain.Wallet, error) {
	w, err := s.wallets.FindByAddress(ctx, userID, address)
	if err != nil {
		s.logError("get", userID, err)
		return nil, err
	}

	return w, nil
}

// Remove deletes a wallet owned by the user.
func (s *Service) Remove(ctx context.Context, userID int64, address string) error {
	if err := s.wallets.Remove(ctx, userID, address); err != nil {
		s.logError("remove", userID, err)
		return err
	}

	return nil
}

// Count returns the number of wallets the user holds.
func (s *Service) Count(ctx context.Context, userID int64) (int, error) {
	return s.wallets.CountByUser(ctx, userID)
}

// Keypair reconstructs the signing account from a stored wallet.
func (s *Service) Keypair(w domain.Wallet) (types.Account, error) {
	account, err := types.AccountFromBase58(w.PrivateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("decode wallet key: %w", err)
	}

	return account, nil
}

// Settings returns the user's persisted preferences, defaulting on first use.
func (s *Service) Settings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		s.logError("settings", userID, err)
		return nil, err
	}

	return settings, nil
}

// SetLanguage persists the user's language preference.
func (s *Service) SetLanguage(ctx context.Context, userID int64, language string) error {
	return s.updateSettings(ctx, userID, func(settings *domain.UserSettings) {
		settings.Language = language
	})
}

// SetNetwork persists the user's network preference.
func (s *Service) SetNetwork(ctx context.Context, userID int64, network string) error {
	return s.updateSettings(ctx, userID, func(settings *domain.UserSettings) {
		settings.Network = network
	})
}

func (s *Service) updateSettings(ctx context.Context, userID int64, apply func(*domain.UserSettings)) error {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		s.logError("update_settings.get", userID, err)
		return err
	}

	apply(settings)

	if err := s.settings.Upsert(ctx, settings); err != nil {
		s.logError("update_settings.upsert", userID, err)
		return err
	}

	return nil
}

// Network maps the stored preference to an RPC network.
func Network(settings *domain.UserSettings) solana.Network {
	if settings != nil && settings.Network == domain.NetworkDevnet {
		return solana.NetworkDevnet
	}

	return solana.NetworkMainnet
}

func (s *Service) logError(operation string, userID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("wallet service operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
