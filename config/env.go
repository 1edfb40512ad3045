package config

import (
	"github.com/kelseyhightower/envconfig"
)

// App holds every setting read from the environment.
type App struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	Port     string `envconfig:"PORT" default:"8080"`

	// Comma-separated browser origins allowed by CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// DB
	MongoURI string `envconfig:"MONGO_URI"`
	DBName   string `envconfig:"DB_NAME" default:"partner_marketplace"`

	// JWT
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Razorpay
	RazorpayKeyID         string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `envconfig:"RAZORPAY_WEBHOOK_SECRET"`
	RazorpayBaseURL       string `envconfig:"RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Currency              string `envconfig:"CURRENCY" default:"INR"`

	// Commission
	CommissionPremiumRate  float64 `envconfig:"COMMISSION_PREMIUM_RATE" default:"0.10"`
	CommissionStandardRate float64 `envconfig:"COMMISSION_STANDARD_RATE" default:"0.20"`

	// Firebase
	FirebaseCredentialsBase64 string `envconfig:"FIREBASE_CREDENTIALS_BASE64"`
	FirebaseCredentialsFile   string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseProjectID         string `envconfig:"FIREBASE_PROJECT_ID"`

	// RabbitMQ
	RabbitURL      string `envconfig:"RABBIT_URL"`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"notifications"`

	// SMTP
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASS"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	// Tracing
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads App from the process environment.
func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}

// IsDevelopment reports whether the service runs in a local environment.
func (a App) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}
