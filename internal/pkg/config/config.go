package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timeouts, breaker tuning, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	CORS      CORSConfig
	Log       LogConfig
	JWT       JWTConfig
	Inventory InventoryConfig
	Payment   PaymentConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization,Idempotency-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

// JWT tokens are issued by the external user service; this service only verifies them.
type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

// InventoryConfig tunes the inventory (product) service client.
type InventoryConfig struct {
	BaseURL          string        `envconfig:"INVENTORY_SERVICE_URL" default:"http://localhost:8002"`
	Timeout          time.Duration `envconfig:"INVENTORY_TIMEOUT" default:"10s"`
	RetryMaxAttempts int           `envconfig:"INVENTORY_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"INVENTORY_RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay    time.Duration `envconfig:"INVENTORY_RETRY_MAX_DELAY" default:"10s"`
	BreakerThreshold int           `envconfig:"INVENTORY_BREAKER_THRESHOLD" default:"5"`
	BreakerRecovery  time.Duration `envconfig:"INVENTORY_BREAKER_RECOVERY" default:"30s"`
}

// PaymentConfig tunes the payment service client. Charges are slow and costly to
// repeat, so the breaker trips sooner and cools down longer than inventory.
type PaymentConfig struct {
	BaseURL          string        `envconfig:"PAYMENT_SERVICE_URL" default:"http://localhost:8004"`
	Timeout          time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"PAYMENT_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"PAYMENT_RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay    time.Duration `envconfig:"PAYMENT_RETRY_MAX_DELAY" default:"30s"`
	BreakerThreshold int           `envconfig:"PAYMENT_BREAKER_THRESHOLD" default:"3"`
	BreakerRecovery  time.Duration `envconfig:"PAYMENT_BREAKER_RECOVERY" default:"60s"`
}

type RabbitMQConfig struct {
	Host             string        `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port             int           `envconfig:"RABBITMQ_PORT" default:"5672"`
	User             string        `envconfig:"RABBITMQ_USER" default:"guest"`
	Password         string        `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	VHost            string        `envconfig:"RABBITMQ_VHOST" default:"/"`
	Queue            string        `envconfig:"NOTIFICATION_QUEUE" default:"order_notifications"`
	DialMaxAttempts  int           `envconfig:"RABBITMQ_DIAL_MAX_ATTEMPTS" default:"5"`
	DialBaseDelay    time.Duration `envconfig:"RABBITMQ_DIAL_BASE_DELAY" default:"1s"`
	DialMaxDelay     time.Duration `envconfig:"RABBITMQ_DIAL_MAX_DELAY" default:"10s"`
	BreakerThreshold int           `envconfig:"RABBITMQ_BREAKER_THRESHOLD" default:"5"`
	BreakerRecovery  time.Duration `envconfig:"RABBITMQ_BREAKER_RECOVERY" default:"30s"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func (c *RabbitMQConfig) BuildURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret: "test-secret",
		},
	}
}
