package repositories

import (
	"context"
	"time"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoEarningsRepository struct {
	collection *mongo.Collection
}

func NewEarningsRepository(db *mongo.Database) *MongoEarningsRepository {
	return &MongoEarningsRepository{collection: db.Collection(config.EarningsCollection)}
}

func (r *MongoEarningsRepository) Get(ctx context.Context, partnerID primitive.ObjectID) (*models.PartnerEarnings, error) {
	now := time.Now()
	fresh := models.NewPartnerEarnings(partnerID, now)
	update := bson.M{"$setOnInsert": bson.M{
		"partnerId":          partnerID,
		"totalEarnings":      0.0,
		"availableBalance":   0.0,
		"totalWithdrawn":     0.0,
		"pendingWithdrawals": 0.0,
		"creditedBookings":   fresh.CreditedBookings,
		"reversedBookings":   fresh.ReversedBookings,
		"createdAt":          now,
		"updatedAt":          now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var earnings models.PartnerEarnings
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"partnerId": partnerID}, update, opts).Decode(&earnings)
	if err != nil {
		// Two first accesses can race on the unique index; the loser reads
		if mongo.IsDuplicateKeyError(err) {
			if err := r.collection.FindOne(ctx, bson.M{"partnerId": partnerID}).Decode(&earnings); err != nil {
				return nil, err
			}
			return &earnings, nil
		}
		return nil, err
	}
	return &earnings, nil
}

func (r *MongoEarningsRepository) CreditBooking(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error) {
	if _, err := r.Get(ctx, partnerID); err != nil {
		return false, err
	}
	filter := bson.M{
		"partnerId":        partnerID,
		"creditedBookings": bson.M{"$ne": bookingID},
		"reversedBookings": bson.M{"$ne": bookingID},
	}
	update := bson.M{
		"$inc":      bson.M{"totalEarnings": amount, "availableBalance": amount},
		"$addToSet": bson.M{"creditedBookings": bookingID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *MongoEarningsRepository) ReverseBooking(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error) {
	if _, err := r.Get(ctx, partnerID); err != nil {
		return false, err
	}
	now := time.Now()
	filter := bson.M{
		"partnerId":        partnerID,
		"creditedBookings": bookingID,
		"reversedBookings": bson.M{"$ne": bookingID},
	}
	update := bson.M{
		"$inc":      bson.M{"totalEarnings": -amount, "availableBalance": -amount},
		"$addToSet": bson.M{"reversedBookings": bookingID},
		"$set":      bson.M{"updatedAt": now},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if result.ModifiedCount == 1 {
		return true, nil
	}

	// Never credited: mark it reversed so a late credit cannot land
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"partnerId": partnerID, "creditedBookings": bson.M{"$ne": bookingID}},
		bson.M{"$addToSet": bson.M{"reversedBookings": bookingID}, "$set": bson.M{"updatedAt": now}},
	)
	return false, err
}

func (r *MongoEarningsRepository) Reserve(ctx context.Context, partnerID primitive.ObjectID, amount float64) error {
	if _, err := r.Get(ctx, partnerID); err != nil {
		return err
	}
	filter := bson.M{
		"partnerId": partnerID,
		"$expr": bson.M{"$gte": bson.A{
			bson.M{"$subtract": bson.A{"$availableBalance", "$pendingWithdrawals"}},
			amount - moneyEpsilon,
		}},
	}
	update := bson.M{
		"$inc": bson.M{"pendingWithdrawals": amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	return r.guardedUpdate(ctx, filter, update)
}

func (r *MongoEarningsRepository) Release(ctx context.Context, partnerID primitive.ObjectID, amount float64) error {
	filter := bson.M{
		"partnerId":          partnerID,
		"pendingWithdrawals": bson.M{"$gte": amount - moneyEpsilon},
	}
	update := bson.M{
		"$inc": bson.M{"pendingWithdrawals": -amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	return r.guardedUpdate(ctx, filter, update)
}

func (r *MongoEarningsRepository) SettlePayout(ctx context.Context, partnerID primitive.ObjectID, amount float64, at time.Time) error {
	filter := bson.M{
		"partnerId":          partnerID,
		"pendingWithdrawals": bson.M{"$gte": amount - moneyEpsilon},
		"availableBalance":   bson.M{"$gte": amount - moneyEpsilon},
	}
	update := bson.M{
		"$inc": bson.M{
			"pendingWithdrawals": -amount,
			"availableBalance":   -amount,
			"totalWithdrawn":     amount,
		},
		"$set": bson.M{"lastWithdrawalAt": at, "updatedAt": time.Now()},
	}
	return r.guardedUpdate(ctx, filter, update)
}

func (r *MongoEarningsRepository) guardedUpdate(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrInsufficientFunds
	}
	return nil
}
