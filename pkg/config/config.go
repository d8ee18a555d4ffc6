package config

import "time"

// Config is the full configuration surface of the subgate service.
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Payment      PaymentConfig
	Subscription SubscriptionConfig
	Checker      CheckerConfig
}

// AppConfig carries process-wide settings.
type AppConfig struct {
	// Env selects runtime behavior: "production" fails closed on
	// unverifiable webhook signatures, anything else fails open.
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// IsProduction reports whether the process runs with production semantics.
func (c AppConfig) IsProduction() bool { return c.Env == "production" }

// ServerConfig configures the HTTP listener that serves webhooks and health checks.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxConns        int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	RetryAttempts   int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"5s"`
	HealthcheckTick time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
}

// RedisConfig is optional; when URL is empty the service keeps rate
// limit state in process memory.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

type TelegramConfig struct {
	// BotToken is optional; without it outbound notifications are logged
	// instead of delivered.
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	// MessagesPerSecond caps global outbound sends.
	MessagesPerSecond float64 `env:"TELEGRAM_MESSAGES_PER_SECOND" envDefault:"30"`
	MaxConcurrent     int     `env:"TELEGRAM_MAX_CONCURRENT_SENDS" envDefault:"5"`
}

type PaymentConfig struct {
	APIKey            string        `env:"NOWPAYMENTS_API_KEY"`
	IPNSecret         string        `env:"NOWPAYMENTS_IPN_SECRET"`
	BaseURL           string        `env:"NOWPAYMENTS_BASE_URL" envDefault:"https://api.nowpayments.io/v1"`
	WebhookURL        string        `env:"WEBHOOK_URL"`
	InvoiceExpiration time.Duration `env:"PAYMENT_INVOICE_EXPIRATION" envDefault:"60m"`
	// SupportedCurrencies whitelists the pay currencies offered at checkout.
	SupportedCurrencies []string      `env:"SUPPORTED_CURRENCIES" envSeparator:"," envDefault:"btc,eth,usdt,usdc,bnb,trx"`
	RequestTimeout      time.Duration `env:"PAYMENT_REQUEST_TIMEOUT" envDefault:"30s"`
	// WebhookRatePerMinute caps IPN deliveries accepted per client IP.
	WebhookRatePerMinute int `env:"WEBHOOK_RATE_PER_MINUTE" envDefault:"60"`
}

type SubscriptionConfig struct {
	TrialDays           int     `env:"TRIAL_DAYS" envDefault:"15"`
	GracePeriodDays     int     `env:"GRACE_PERIOD_DAYS" envDefault:"3"`
	PriceUSD            float64 `env:"SUBSCRIPTION_PRICE_USD" envDefault:"15.00"`
	TrialCooldownDays   int     `env:"TRIAL_COOLDOWN_DAYS" envDefault:"30"`
	MaxTrialsPerCreator int     `env:"MAX_TRIALS_PER_CREATOR" envDefault:"3"`
	PlansFile           string  `env:"SUBSCRIPTION_PLANS_FILE"`
}

// CheckerConfig controls the daily lifecycle sweep.
type CheckerConfig struct {
	// Hour is the local hour of day (0-23) the sweep runs at.
	Hour          int           `env:"CHECK_HOUR" envDefault:"9"`
	ErrorCooldown time.Duration `env:"CHECK_ERROR_COOLDOWN" envDefault:"1h"`
}
