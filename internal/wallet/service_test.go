package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solmate-labs/solmate-bot/internal/domain"
	"github.com/solmate-labs/solmate-bot/internal/solana"
)

type memWalletRepo struct {
	wallets []domain.Wallet
}

func (r *memWalletRepo) ListByUser(_ context.Context, userID int64) ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *memWalletRepo) FindByAddress(_ context.Context, userID int64, address string) (*domain.Wallet, error) {
	for _, w := range r.wallets {
		if w.UserID == userID && w.Address == address {
			found := w
			return &found, nil
		}
	}
	return nil, errors.New("wallet not found")
}

func (r *memWalletRepo) Create(_ context.Context, wallet *domain.Wallet) error {
	wallet.ID = int64(len(r.wallets) + 1)
	r.wallets = append(r.wallets, *wallet)
	return nil
}

func (r *memWalletRepo) Remove(_ context.Context, userID int64, address string) error {
	for i, w := range r.wallets {
		if w.UserID == userID && w.Address == address {
			r.wallets = append(r.wallets[:i], r.wallets[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memWalletRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	count := 0
	for _, w := range r.wallets {
		if w.UserID == userID {
			count++
		}
	}
	return count, nil
}

type memSettingsRepo struct {
	settings map[int64]domain.UserSettings
}

func (r *memSettingsRepo) Get(_ context.Context, userID int64) (*domain.UserSettings, error) {
	if s, ok := r.settings[userID]; ok {
		found := s
		return &found, nil
	}
	defaults := domain.DefaultSettings(userID)
	return &defaults, nil
}

func (r *memSettingsRepo) Upsert(_ context.Context, settings *domain.UserSettings) error {
	if r.settings == nil {
		r.settings = make(map[int64]domain.UserSettings)
	}
	r.settings[settings.UserID] = *settings
	return nil
}

func newTestService() (*Service, *memWalletRepo, *memSettingsRepo) {
	wallets := &memWalletRepo{}
	settings := &memSettingsRepo{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(wallets, settings, log), wallets, settings
}

func TestGenerate_CreatesDistinctWallets(t *testing.T) {
	svc, repo, _ := newTestService()

	generated, err := svc.Generate(context.Background(), 42, 3)
	require.NoError(t, err)
	require.Len(t, generated, 3)
	assert.Len(t, repo.wallets, 3)

	seen := make(map[string]bool)
	for _, g := range generated {
		assert.Equal(t, int64(42), g.Wallet.UserID)
		assert.NotEmpty(t, g.Mnemonic)
		assert.False(t, seen[g.Wallet.Address], "addresses must be unique")
		seen[g.Wallet.Address] = true
	}
}

func TestGenerate_RejectsOutOfRangeCounts(t *testing.T) {
	svc, repo, _ := newTestService()

	for _, count := range []int{0, -1, MaxBatchSize + 1} {
		_, err := svc.Generate(context.Background(), 42, count)
		require.Error(t, err, "count %d must be rejected", count)
	}
	assert.Empty(t, repo.wallets, "rejected requests must not persist anything")
}

func TestKeypair_RoundTripsStoredKey(t *testing.T) {
	svc, _, _ := newTestService()

	generated, err := svc.Generate(context.Background(), 1, 1)
	require.NoError(t, err)

	account, err := svc.Keypair(generated[0].Wallet)
	require.NoError(t, err)
	assert.Equal(t, generated[0].Wallet.Address, account.PublicKey.ToBase58())
}

func TestKeypair_RejectsMalformedKey(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Keypair(domain.Wallet{PrivateKey: "not-base58!!"})
	assert.Error(t, err)
}

func TestSetLanguagePersists(t *testing.T) {
	svc, _, settings := newTestService()

	require.NoError(t, svc.SetLanguage(context.Background(), 42, domain.LanguageChinese))

	stored, err := svc.Settings(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageChinese, stored.Language)
	assert.Equal(t, domain.NetworkMainnet, stored.Network, "unrelated preference must be untouched")
	assert.Contains(t, settings.settings, int64(42))
}

func TestNetworkMapping(t *testing.T) {
	assert.Equal(t, solana.NetworkMainnet, Network(nil))
	assert.Equal(t, solana.NetworkMainnet, Network(&domain.UserSettings{Network: domain.NetworkMainnet}))
	assert.Equal(t, solana.NetworkDevnet, Network(&domain.UserSettings{Network: domain.NetworkDevnet}))
}
