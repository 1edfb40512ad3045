package memory

import "github.com/HSouheill/partner_marketplace/repositories"

var (
	_ repositories.BookingRepository      = (*Bookings)(nil)
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.PartnerRepository      = (*Partners)(nil)
	_ repositories.EarningsRepository     = (*Earnings)(nil)
	_ repositories.WithdrawalRepository   = (*Withdrawals)(nil)
	_ repositories.WalletRepository       = (*Wallets)(nil)
	_ repositories.NotificationRepository = (*Notifications)(nil)
	_ repositories.ReportRepository       = (*Reports)(nil)
)

// Store bundles one of each in-memory repository.
type Store struct {
	Bookings      *Bookings
	Users         *Users
	Partners      *Partners
	Earnings      *Earnings
	Withdrawals   *Withdrawals
	Wallets       *Wallets
	Notifications *Notifications
	Reports       *Reports
}

func NewStore() *Store {
	return &Store{
		Bookings:      NewBookings(),
		Users:         NewUsers(),
		Partners:      NewPartners(),
		Earnings:      NewEarnings(),
		Withdrawals:   NewWithdrawals(),
		Wallets:       NewWallets(),
		Notifications: NewNotifications(),
		Reports:       NewReports(),
	}
}
