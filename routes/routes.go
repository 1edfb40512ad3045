package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/partner_marketplace/controllers"
	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
)

// Controllers bundles every handler the API mounts.
type Controllers struct {
	Bookings      *controllers.BookingController
	Payments      *controllers.PaymentController
	Earnings      *controllers.EarningsController
	Admin         *controllers.AdminController
	Wallet        *controllers.WalletController
	Users         *controllers.UserController
	Notifications *controllers.NotificationController
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, jwtSecret string, h Controllers) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Public endpoints
	e.POST("/api/payments/webhook", h.Payments.Webhook)
	e.GET("/api/ws", h.Notifications.Connect)

	api := e.Group("/api")
	api.Use(middleware.JWTMiddleware(jwtSecret))

	RegisterBookingRoutes(api, h.Bookings)
	RegisterPaymentRoutes(api, h.Payments)
	RegisterEarningsRoutes(api, h.Earnings)
	RegisterWalletRoutes(api, h.Wallet)
	RegisterUserRoutes(api, h.Users)
	RegisterAdminRoutes(api, h.Admin)
}

func RegisterBookingRoutes(api *echo.Group, bc *controllers.BookingController) {
	bookings := api.Group("/bookings")
	bookings.POST("", bc.CreateBooking)
	bookings.GET("/me", bc.GetMyBookings)
	bookings.GET("/partner", bc.GetPartnerBookings, middleware.RequireRole(models.RolePartner))
	bookings.GET("/:id", bc.GetBooking)
	bookings.GET("/:id/receipt", bc.GetReceipt)
	bookings.PATCH("/:id/respond", bc.RespondToBooking, middleware.RequireRole(models.RolePartner))
	bookings.PATCH("/:id/cancel", bc.CancelBooking)
	bookings.PATCH("/:id/complete", bc.CompleteBooking, middleware.RequireRole(models.RolePartner))
}

func RegisterPaymentRoutes(api *echo.Group, pc *controllers.PaymentController) {
	payments := api.Group("/payments")
	payments.POST("/create-order", pc.CreateOrder)
	payments.POST("/verify", pc.VerifyPayment)
}

func RegisterEarningsRoutes(api *echo.Group, ec *controllers.EarningsController) {
	earnings := api.Group("/earnings", middleware.RequireRole(models.RolePartner))
	earnings.GET("/partner", ec.GetEarnings)
	earnings.POST("/withdrawal", ec.RequestWithdrawal)
	earnings.GET("/withdrawals", ec.GetMyWithdrawals)
}

func RegisterWalletRoutes(api *echo.Group, wc *controllers.WalletController) {
	wallet := api.Group("/wallet")
	wallet.GET("", wc.GetWallet)
	wallet.POST("/transfer", wc.Transfer)
	wallet.POST("/withdraw", wc.Withdraw)
}

func RegisterUserRoutes(api *echo.Group, uc *controllers.UserController) {
	users := api.Group("/users")
	users.POST("/block", uc.BlockUser)
	users.POST("/report", uc.ReportUser)
	users.GET("/reports", uc.GetMyReports)
	users.PUT("/fcm-token", uc.UpdateFCMToken)
	users.GET("/notifications", uc.GetNotifications)
}

func RegisterAdminRoutes(api *echo.Group, ac *controllers.AdminController) {
	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/withdrawals", ac.ListWithdrawals)
	admin.PATCH("/withdrawals/:id", ac.ResolveWithdrawal)
	admin.PATCH("/partners/:id", ac.SetPartnerApproval)
	admin.GET("/revenue", ac.GetRevenue)
}
