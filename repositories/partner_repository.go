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

type MongoPartnerRepository struct {
	collection *mongo.Collection
}

func NewPartnerRepository(db *mongo.Database) *MongoPartnerRepository {
	return &MongoPartnerRepository{collection: db.Collection(config.PartnersCollection)}
}

func (r *MongoPartnerRepository) Insert(ctx context.Context, p *models.Partner) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, p)
	return mapWriteError(err)
}

func (r *MongoPartnerRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Partner, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPartnerRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Partner, error) {
	return r.findOne(ctx, bson.M{"userId": userID})
}

func (r *MongoPartnerRepository) findOne(ctx context.Context, filter bson.M) (*models.Partner, error) {
	var partner models.Partner
	if err := r.collection.FindOne(ctx, filter).Decode(&partner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &partner, nil
}

func (r *MongoPartnerRepository) SetApprovalStatus(ctx context.Context, id primitive.ObjectID, from, to string) (*models.Partner, error) {
	filter := bson.M{"_id": id, "approvalStatus": from}
	update := bson.M{"$set": bson.M{"approvalStatus": to, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var partner models.Partner
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&partner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPreconditionFailed
		}
		return nil, err
	}
	return &partner, nil
}
