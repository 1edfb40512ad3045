package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/HSouheill/partner_marketplace/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WalletService struct {
	wallets  repositories.WalletRepository
	users    repositories.UserRepository
	notifier Notifier
}

func NewWalletService(wallets repositories.WalletRepository, users repositories.UserRepository, notifier Notifier) *WalletService {
	return &WalletService{wallets: wallets, users: users, notifier: notifier}
}

// Get returns the caller's wallet with the newest transactions first.
func (s *WalletService) Get(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	// Transactions are stored in append order
	for i, j := 0, len(w.Transactions)-1; i < j; i, j = i+1, j-1 {
		w.Transactions[i], w.Transactions[j] = w.Transactions[j], w.Transactions[i]
	}
	return w, nil
}

// Transfer moves amount from the sender's wallet to the recipient's.
func (s *WalletService) Transfer(ctx context.Context, senderID primitive.ObjectID, req models.WalletTransferRequest) (*models.Wallet, error) {
	amount := models.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, validationError("Amount must be greater than zero")
	}
	email, err := utils.SanitizeEmail(req.RecipientEmail)
	if err != nil {
		return nil, validationError("Invalid recipient email")
	}

	recipient, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Recipient not found")
		}
		return nil, fmt.Errorf("find recipient: %w", err)
	}
	if recipient.ID == senderID {
		return nil, validationError("Cannot transfer to yourself")
	}

	ref := uuid.NewString()
	if err := s.wallets.Transfer(ctx, senderID, recipient.ID, amount, "transfer to "+email, ref); err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return nil, validationError("Insufficient balance")
		}
		return nil, fmt.Errorf("transfer: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"senderId":    senderID.Hex(),
		"recipientId": recipient.ID.Hex(),
		"amount":      amount,
		"ref":         ref,
	}).Info("Wallet transfer completed")

	s.notifier.Notify(ctx, recipient.ID, models.NotificationWalletCredited,
		"Wallet credited", fmt.Sprintf("You received %.2f", amount),
		map[string]interface{}{"amount": amount, "ref": ref})

	return s.Get(ctx, senderID)
}

// Withdraw debits the caller's wallet for a bank payout.
func (s *WalletService) Withdraw(ctx context.Context, userID primitive.ObjectID, req models.WalletWithdrawRequest) (*models.Wallet, error) {
	amount := models.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, validationError("Amount must be greater than zero")
	}
	bank := req.BankDetails
	if bank == nil || strings.TrimSpace(bank.AccountNumber) == "" || strings.TrimSpace(bank.IFSC) == "" || strings.TrimSpace(bank.AccountHolder) == "" {
		return nil, validationError("Bank details are required")
	}

	ref := uuid.NewString()
	reason := "withdrawal to account ending " + lastDigits(bank.AccountNumber, 4)
	if err := s.wallets.Debit(ctx, userID, amount, reason, ref); err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return nil, validationError("Insufficient balance")
		}
		return nil, fmt.Errorf("debit wallet: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"userId": userID.Hex(),
		"amount": amount,
		"ref":    ref,
	}).Info("Wallet withdrawal recorded")

	return s.Get(ctx, userID)
}

func lastDigits(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
