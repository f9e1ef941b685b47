package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// TransferSOL submits a lamport transfer signed by sender and returns the
// transaction signature.
func (s *Service) TransferSOL(ctx context.Context, network Network, sender types.Account, recipient string, lamports uint64) (string, error) {
	c := s.rpc(network)

	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        sender.PublicKey,
			RecentBlockhash: blockhash.Blockhash,
			Instructions: []types.Instruction{
				transferInstruction(sender.PublicKey, common.PublicKeyFromString(recipient), lamports),
			},
		}),
		Signers: []types.Account{sender},
	})
	if err != nil {
		return "", fmt.Errorf("build transfer transaction: %w", err)
	}

	start := time.Now()
	signature, err := c.SendTransaction(ctx, tx)
	metrics.RecordRPC("sendTransaction", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}

	s.log.Info("sol transfer submitted",
		slog.String("from", sender.PublicKey.ToBase58()),
		slog.String("to", recipient),
		slog.Uint64("lamports", lamports),
		slog.String("signature", signature),
	)

	return signature, nil
}

// TransferToken submits an SPL token transfer in base units, creating the
// recipient's associated token account first when it does not exist yet.
func (s *Service) TransferToken(ctx context.Context, network Network, sender types.Account, recipient, mint string, amount uint64) (string, error) {
	c := s.rpc(network)

	mintKey := common.PublicKeyFromString(mint)
	recipientKey := common.PublicKeyFromString(recipient)

	senderATA, _, err := common.FindAssociatedTokenAddress(sender.PublicKey, mintKey)
	if err != nil {
		return "", fmt.Errorf("derive sender token account: %w", err)
	}
	recipientATA, _, err := common.FindAssociatedTokenAddress(recipientKey, mintKey)
	if err != nil {
		return "", fmt.Errorf("derive recipient token account: %w", err)
	}

	instructions := make([]types.Instruction, 0, 2)

	exists, err := s.accountExists(ctx, network, recipientATA.ToBase58())
	if err != nil {
		return "", err
	}
	if !exists {
		instructions = append(instructions, associated_token_account.Create(associated_token_account.CreateParam{
			Funder:                 sender.PublicKey,
			Owner:                  recipientKey,
			Mint:                   mintKey,
			AssociatedTokenAccount: recipientATA,
		}))
	}

	instructions = append(instructions, token.Transfer(token.TransferParam{
		From:   senderATA,
		To:     recipientATA,
		Auth:   sender.PublicKey,
		Amount: amount,
	}))

	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        sender.PublicKey,
			RecentBlockhash: blockhash.Blockhash,
			Instructions:    instructions,
		}),
		Signers: []types.Account{sender},
	})
	if err != nil {
		return "", fmt.Errorf("build token transfer transaction: %w", err)
	}

	start := time.Now()
	signature, err := c.SendTransaction(ctx, tx)
	metrics.RecordRPC("sendTransaction", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("send token transfer: %w", err)
	}

	s.log.Info("token transfer submitted",
		slog.String("from", sender.PublicKey.ToBase58()),
		slog.String("to", recipient),
		slog.String("mint", mint),
		slog.Uint64("amount", amount),
		slog.String("signature", signature),
	)

	return signature, nil
}

func (s *Service) accountExists(ctx context.Context, network Network, addr string) (bool, error) {
	start := time.Now()
	info, err := s.rpc(network).GetAccountInfo(ctx, addr)
	metrics.RecordRPC("getAccountInfo", statusOf(err), time.Since(start))
	if err != nil {
		if accountMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("get account info for %s: %w", addr, err)
	}

	return info.Owner != (common.PublicKey{}), nil
}

func transferInstruction(from, to common.PublicKey, lamports uint64) types.Instruction {
	return system.Transfer(system.TransferParam{
		From:   from,
		To:     to,
		Amount: lamports,
	})
}

func accountMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
