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

type MongoBookingRepository struct {
	collection *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{collection: db.Collection(config.BookingsCollection)}
}

func (r *MongoBookingRepository) Insert(ctx context.Context, b *models.Booking) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, b)
	return mapWriteError(err)
}

func (r *MongoBookingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoBookingRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"razorpayOrderId": orderID})
}

func (r *MongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	var booking models.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *MongoBookingRepository) HasOverlap(ctx context.Context, partnerID primitive.ObjectID, date time.Time, startTime, endTime string) (bool, error) {
	filter := bson.M{
		"partnerId": partnerID,
		"date":      date,
		"status":    bson.M{"$in": []string{models.BookingStatusPending, models.BookingStatusConfirmed}},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"startTime": 1, "endTime": 1}))
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var existing models.Booking
		if err := cursor.Decode(&existing); err != nil {
			return false, err
		}
		if existing.Overlaps(startTime, endTime) {
			return true, nil
		}
	}
	return false, cursor.Err()
}

func (r *MongoBookingRepository) List(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	filter := bson.M{}
	if !f.UserID.IsZero() {
		filter["userId"] = f.UserID
	}
	if !f.PartnerID.IsZero() {
		filter["partnerId"] = f.PartnerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.PaymentStatus != "" {
		filter["paymentStatus"] = f.PaymentStatus
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *MongoBookingRepository) SetOrderID(ctx context.Context, id primitive.ObjectID, orderID string) error {
	filter := bson.M{"_id": id, "paymentStatus": models.PaymentStatusUnpaid}
	update := bson.M{"$set": bson.M{"razorpayOrderId": orderID, "updatedAt": time.Now()}}
	return r.conditionalUpdate(ctx, filter, update)
}

func (r *MongoBookingRepository) SetRefundID(ctx context.Context, id primitive.ObjectID, refundID string) error {
	filter := bson.M{
		"_id":              id,
		"paymentStatus":    models.PaymentStatusPaid,
		"razorpayRefundId": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"razorpayRefundId": refundID, "updatedAt": time.Now()}}
	return r.conditionalUpdate(ctx, filter, update)
}

func (r *MongoBookingRepository) conditionalUpdate(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func (r *MongoBookingRepository) CompareAndSwap(ctx context.Context, id primitive.ObjectID, expect BookingExpectation, change BookingChange) (*models.Booking, error) {
	filter := bson.M{"_id": id}
	if len(expect.Statuses) > 0 {
		filter["status"] = bson.M{"$in": expect.Statuses}
	}
	if expect.PaymentStatus != "" {
		filter["paymentStatus"] = expect.PaymentStatus
	}
	if expect.SettlementApplied != nil {
		if *expect.SettlementApplied {
			filter["settlementApplied"] = true
		} else {
			// Documents written before the flag existed count as unsettled
			filter["settlementApplied"] = bson.M{"$ne": true}
		}
	}

	set := bson.M{"updatedAt": time.Now()}
	if change.Status != nil {
		set["status"] = *change.Status
	}
	if change.PaymentStatus != nil {
		set["paymentStatus"] = *change.PaymentStatus
	}
	if change.RazorpayPaymentID != nil {
		set["razorpayPaymentId"] = *change.RazorpayPaymentID
	}
	if change.PlatformCommission != nil {
		set["platformCommission"] = *change.PlatformCommission
	}
	if change.PartnerEarning != nil {
		set["partnerEarning"] = *change.PartnerEarning
	}
	if change.CommissionRate != nil {
		set["commissionRate"] = *change.CommissionRate
	}
	if change.SettlementApplied != nil {
		set["settlementApplied"] = *change.SettlementApplied
	}
	if change.PaidAt != nil {
		set["paidAt"] = *change.PaidAt
	}
	if change.CancelledAt != nil {
		set["cancelledAt"] = *change.CancelledAt
	}
	if change.CompletedAt != nil {
		set["completedAt"] = *change.CompletedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPreconditionFailed
		}
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

func (r *MongoBookingRepository) Revenue(ctx context.Context) (*models.RevenueOverview, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"paymentStatus": models.PaymentStatusPaid}}},
		{{Key: "$group", Value: bson.M{
			"_id":                nil,
			"bookingCount":       bson.M{"$sum": 1},
			"totalAmount":        bson.M{"$sum": "$totalAmount"},
			"platformCommission": bson.M{"$sum": "$platformCommission"},
			"partnerEarnings":    bson.M{"$sum": "$partnerEarning"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	overview := &models.RevenueOverview{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(overview); err != nil {
			return nil, err
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	overview.TotalAmount = models.RoundMoney(overview.TotalAmount)
	overview.PlatformCommission = models.RoundMoney(overview.PlatformCommission)
	overview.PartnerEarnings = models.RoundMoney(overview.PartnerEarnings)
	return overview, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
