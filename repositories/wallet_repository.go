package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoWalletRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) *MongoWalletRepository {
	return &MongoWalletRepository{
		client:     db.Client(),
		collection: db.Collection(config.WalletsCollection),
	}
}

func (r *MongoWalletRepository) Get(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	now := time.Now()
	update := bson.M{"$setOnInsert": bson.M{
		"userId":       userID,
		"balance":      0.0,
		"transactions": bson.A{},
		"createdAt":    now,
		"updatedAt":    now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var wallet models.Wallet
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&wallet)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&wallet); err != nil {
				return nil, err
			}
			return &wallet, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *MongoWalletRepository) Transfer(ctx context.Context, from, to primitive.ObjectID, amount float64, reason, refID string) error {
	// Both wallets must exist before the transaction starts
	if _, err := r.Get(ctx, from); err != nil {
		return err
	}
	if _, err := r.Get(ctx, to); err != nil {
		return err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now()
		if err := r.apply(sc, from, -amount, models.TransactionDebit, reason, refID, now); err != nil {
			return nil, err
		}
		if err := r.apply(sc, to, amount, models.TransactionCredit, reason, refID, now); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *MongoWalletRepository) Debit(ctx context.Context, userID primitive.ObjectID, amount float64, reason, refID string) error {
	if _, err := r.Get(ctx, userID); err != nil {
		return err
	}
	return r.apply(ctx, userID, -amount, models.TransactionDebit, reason, refID, time.Now())
}

// apply moves the balance by delta and appends one transaction. Debits only
// match when the balance covers them.
func (r *MongoWalletRepository) apply(ctx context.Context, userID primitive.ObjectID, delta float64, kind, reason, refID string, at time.Time) error {
	amount := delta
	filter := bson.M{"userId": userID}
	if delta < 0 {
		amount = -delta
		filter["balance"] = bson.M{"$gte": amount - moneyEpsilon}
	}
	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$push": bson.M{"transactions": models.WalletTransaction{
			Type:      kind,
			Amount:    amount,
			Reason:    reason,
			RefID:     refID,
			CreatedAt: at,
		}},
		"$set": bson.M{"updatedAt": at},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if delta < 0 {
			return ErrInsufficientFunds
		}
		return ErrNotFound
	}
	return nil
}
