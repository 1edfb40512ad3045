package repositories

import "go.mongodb.org/mongo-driver/mongo"

var (
	_ BookingRepository      = (*MongoBookingRepository)(nil)
	_ UserRepository         = (*MongoUserRepository)(nil)
	_ PartnerRepository      = (*MongoPartnerRepository)(nil)
	_ EarningsRepository     = (*MongoEarningsRepository)(nil)
	_ WithdrawalRepository   = (*MongoWithdrawalRepository)(nil)
	_ WalletRepository       = (*MongoWalletRepository)(nil)
	_ NotificationRepository = (*MongoNotificationRepository)(nil)
	_ ReportRepository       = (*MongoReportRepository)(nil)
)

// Mongo bundles the repositories backed by one database.
type Mongo struct {
	Bookings      *MongoBookingRepository
	Users         *MongoUserRepository
	Partners      *MongoPartnerRepository
	Earnings      *MongoEarningsRepository
	Withdrawals   *MongoWithdrawalRepository
	Wallets       *MongoWalletRepository
	Notifications *MongoNotificationRepository
	Reports       *MongoReportRepository
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		Bookings:      NewBookingRepository(db),
		Users:         NewUserRepository(db),
		Partners:      NewPartnerRepository(db),
		Earnings:      NewEarningsRepository(db),
		Withdrawals:   NewWithdrawalRepository(db),
		Wallets:       NewWalletRepository(db),
		Notifications: NewNotificationRepository(db),
		Reports:       NewReportRepository(db),
	}
}
