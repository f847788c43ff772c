package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName         string
	Environment         string
	LogLevel            string
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	Gateway             GatewayConfig
	NotificationService ServiceConfig
	Auth                AuthConfig
	Features            FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers                  []string
	OrdersTopic              string
	PaymentNotificationTopic string
	ConsumerGroup            string
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// GatewayConfig configures the MercadoPago checkout integration.
type GatewayConfig struct {
	BaseURL             string
	AccessToken         string
	Currency            string
	MinorUnitExponent   int
	StatementDescriptor string
	FrontendURL         string
	BackendURL          string
	Timeout             time.Duration
	NotificationTimeout time.Duration
	DedupeTTL           time.Duration
}

type AuthConfig struct {
	JWTSecret  []byte
	CookieName string
}

type FeatureFlags struct {
	EnableOrderCaching         bool
	EnableOrderEvents          bool
	EnableNotificationConsumer bool
	EnableNotificationDedupe   bool
	StrictGuestCart            bool
	AutoMigrate                bool
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		ServiceName: v.GetString("SERVICE_NAME"),
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Server: ServerConfig{
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  seconds(v, "SERVER_READ_TIMEOUT"),
			WriteTimeout: seconds(v, "SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxLifetime:  time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      seconds(v, "REDIS_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:                  csv(v.GetString("KAFKA_BROKERS")),
			OrdersTopic:              v.GetString("KAFKA_ORDERS_TOPIC"),
			PaymentNotificationTopic: v.GetString("KAFKA_PAYMENT_NOTIFICATIONS_TOPIC"),
			ConsumerGroup:            v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		Gateway: GatewayConfig{
			BaseURL:             strings.TrimRight(v.GetString("MP_BASE_URL"), "/"),
			AccessToken:         v.GetString("MP_ACCESS_TOKEN"),
			Currency:            v.GetString("MP_CURRENCY"),
			MinorUnitExponent:   v.GetInt("MP_MINOR_UNIT_EXPONENT"),
			StatementDescriptor: v.GetString("MP_STATEMENT_DESCRIPTOR"),
			FrontendURL:         strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			BackendURL:          strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
			Timeout:             seconds(v, "MP_TIMEOUT"),
			NotificationTimeout: seconds(v, "GATEWAY_NOTIFICATION_TIMEOUT"),
			DedupeTTL:           time.Duration(v.GetInt("GATEWAY_DEDUPE_TTL_HOURS")) * time.Hour,
		},
		NotificationService: ServiceConfig{
			BaseURL: strings.TrimRight(v.GetString("NOTIFICATION_SERVICE_URL"), "/"),
			Timeout: seconds(v, "NOTIFICATION_SERVICE_TIMEOUT"),
			APIKey:  v.GetString("NOTIFICATION_SERVICE_API_KEY"),
		},
		Auth: AuthConfig{
			JWTSecret:  []byte(v.GetString("JWT_SECRET")),
			CookieName: v.GetString("AUTH_COOKIE_NAME"),
		},
		Features: FeatureFlags{
			EnableOrderCaching:         v.GetBool("FEATURE_ORDER_CACHING"),
			EnableOrderEvents:          v.GetBool("FEATURE_ORDER_EVENTS"),
			EnableNotificationConsumer: v.GetBool("FEATURE_NOTIFICATION_CONSUMER"),
			EnableNotificationDedupe:   v.GetBool("FEATURE_NOTIFICATION_DEDUPE"),
			StrictGuestCart:            v.GetBool("FEATURE_STRICT_GUEST_CART"),
			AutoMigrate:                v.GetBool("DB_AUTO_MIGRATE"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "storefront-orders")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", 8082)
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "acme")
	v.SetDefault("DB_PASSWORD", "acme")
	v.SetDefault("DB_NAME", "acme_storefront")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 300)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_ORDERS_TOPIC", "storefront.orders")
	v.SetDefault("KAFKA_PAYMENT_NOTIFICATIONS_TOPIC", "storefront.payment-notifications")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "storefront-orders")

	v.SetDefault("MP_BASE_URL", "https://api.mercadopago.com")
	v.SetDefault("MP_CURRENCY", "ARS")
	v.SetDefault("MP_MINOR_UNIT_EXPONENT", 2)
	v.SetDefault("MP_STATEMENT_DESCRIPTOR", "DiazDiegokService")
	v.SetDefault("MP_TIMEOUT", 15)
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("BACKEND_URL", "")
	v.SetDefault("GATEWAY_NOTIFICATION_TIMEOUT", 10)
	v.SetDefault("GATEWAY_DEDUPE_TTL_HOURS", 24)

	v.SetDefault("NOTIFICATION_SERVICE_URL", "http://localhost:8085")
	v.SetDefault("NOTIFICATION_SERVICE_TIMEOUT", 10)

	v.SetDefault("AUTH_COOKIE_NAME", "token")

	v.SetDefault("FEATURE_ORDER_CACHING", true)
	v.SetDefault("FEATURE_ORDER_EVENTS", true)
	v.SetDefault("FEATURE_NOTIFICATION_CONSUMER", false)
	v.SetDefault("FEATURE_NOTIFICATION_DEDUPE", true)
	v.SetDefault("FEATURE_STRICT_GUEST_CART", false)
	v.SetDefault("DB_AUTO_MIGRATE", false)
}

// IsLocalURL reports whether a URL is unusable as a public callback target.
func IsLocalURL(raw string) bool {
	if raw == "" {
		return true
	}
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1")
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func csv(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
