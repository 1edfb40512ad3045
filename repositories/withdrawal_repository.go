package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoWithdrawalRepository struct {
	collection *mongo.Collection
}

func NewWithdrawalRepository(db *mongo.Database) *MongoWithdrawalRepository {
	return &MongoWithdrawalRepository{collection: db.Collection(config.WithdrawalsCollection)}
}

func (r *MongoWithdrawalRepository) Insert(ctx context.Context, w *models.WithdrawalRequest) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, w)
	return mapWriteError(err)
}

func (r *MongoWithdrawalRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *MongoWithdrawalRepository) ResolvePending(ctx context.Context, id primitive.ObjectID, status, notes string, by primitive.ObjectID, at time.Time) (*models.WithdrawalRequest, error) {
	filter := bson.M{"_id": id, "status": models.WithdrawalPending}
	set := bson.M{
		"status":      status,
		"processedAt": at,
		"processedBy": by,
		"updatedAt":   at,
	}
	if notes != "" {
		set["adminNotes"] = notes
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var w models.WithdrawalRequest
	if err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPreconditionFailed
		}
		return nil, err
	}
	return &w, nil
}

func (r *MongoWithdrawalRepository) Reopen(ctx context.Context, id primitive.ObjectID, from string) error {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set":   bson.M{"status": models.WithdrawalPending, "updatedAt": time.Now()},
		"$unset": bson.M{"processedAt": "", "processedBy": "", "adminNotes": ""},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func (r *MongoWithdrawalRepository) List(ctx context.Context, f WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	filter := bson.M{}
	if !f.PartnerID.IsZero() {
		filter["partnerId"] = f.PartnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []models.WithdrawalRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}
