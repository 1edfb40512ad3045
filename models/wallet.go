package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wallet transaction types
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Wallet holds the spendable balance of one user. Every balance change
// appends exactly one transaction.
type Wallet struct {
	ID           primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	UserID       primitive.ObjectID  `json:"userId" bson:"userId"`
	Balance      float64             `json:"balance" bson:"balance"`
	Transactions []WalletTransaction `json:"transactions" bson:"transactions"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt" bson:"updatedAt"`
}

type WalletTransaction struct {
	Type      string    `json:"type" bson:"type"` // "credit" or "debit"
	Amount    float64   `json:"amount" bson:"amount"`
	Reason    string    `json:"reason" bson:"reason"`
	RefID     string    `json:"refId,omitempty" bson:"refId,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type WalletTransferRequest struct {
	RecipientEmail string  `json:"recipientEmail" validate:"required,email"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
}

type BankDetails struct {
	AccountHolder string `json:"accountHolder" bson:"accountHolder" validate:"required"`
	AccountNumber string `json:"accountNumber" bson:"accountNumber" validate:"required"`
	IFSC          string `json:"ifsc" bson:"ifsc" validate:"required"`
}

type WalletWithdrawRequest struct {
	Amount      float64      `json:"amount" validate:"required,gt=0"`
	BankDetails *BankDetails `json:"bankDetails" validate:"required"`
}
