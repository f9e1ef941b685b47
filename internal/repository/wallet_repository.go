package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solmate-labs/solmate-bot/internal/domain"
)

// ErrWalletNotFound indicates the requested wallet does not exist for the user.
var ErrWalletNotFound = errors.New("wallet not found")

// WalletRepository defines persistence operations for custodial wallets.
type WalletRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Wallet, error)
	FindByAddress(ctx context.Context, userID int64, address string) (*domain.Wallet, error)
	Create(ctx context.Context, wallet *domain.Wallet) error
	Remove(ctx context.Context, userID int64, address string) error
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type walletRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewWalletRepository creates a new SQL-backed wallet repository.
func NewWalletRepository(db *sql.DB, log *slog.Logger) WalletRepository {
	return &walletRepository{
		db:  db,
		log: log,
	}
}

// ListByUser returns the user's wallets in creation order.
func (r *walletRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Wallet, error) {
	const query = `
		SELECT id, user_id, address, private_key, created_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list wallets", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Address, &w.PrivateKey, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}

	return wallets, nil
}

// FindByAddress fetches one wallet, scoped to its owner.
func (r *walletRepository) FindByAddress(ctx context.Context, userID int64, address string) (*domain.Wallet, error) {
	const query = `
		SELECT id, user_id, address, private_key, created_at
		FROM wallets
		WHERE user_id = $1 AND address = $2
	`

	row := r.db.QueryRowContext(ctx, query, userID, address)

	var w domain.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Address, &w.PrivateKey, &w.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch wallet", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select wallet: %w", err)
	}

	return &w, nil
}

// Create persists a newly generated wallet.
func (r *walletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	const query = `
		INSERT INTO wallets (user_id, address, private_key, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		wallet.UserID,
		wallet.Address,
		wallet.PrivateKey,
		wallet.CreatedAt,
	).Scan(&wallet.ID); err != nil {
		if r.log != nil {
			r.log.Error("failed to create wallet", slog.Int64("user_id", wallet.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert wallet: %w", err)
	}

	return nil
}

// Remove deletes a wallet owned by the user.
func (r *walletRepository) Remove(ctx context.Context, userID int64, address string) error {
	const query = `DELETE FROM wallets WHERE user_id = $1 AND address = $2`

	result, err := r.db.ExecContext(ctx, query, userID, address)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete wallet rows affected: %w", err)
	}
	if affected == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// CountByUser returns the number of wallets the user holds.
func (r *walletRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM wallets WHERE user_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count wallets: %w", err)
	}

	return count, nil
}
