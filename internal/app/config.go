package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/event"
	"github.com/xenking/cart-session/internal/handler"
	"github.com/xenking/cart-session/internal/session"
	"github.com/xenking/cart-session/pkg/httpmiddleware"
)

// ConfigFiles are the YAML files LoadConfig reads, first found wins.
var ConfigFiles = []string{"config.yaml", "/etc/cart/config.yaml"}

// Config holds the complete application configuration, loadable from
// environment variables (CART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Cart        CartConfig
	Session     SessionConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// CartConfig holds the cart defaults.
type CartConfig struct {
	TaxRate string       `default:"16" usage:"Default tax rate in percent" yaml:"tax_rate"`
	Table   string       `default:"shopping_cart" usage:"Stored cart table"`
	Format  FormatConfig `yaml:"format"`
}

// FormatConfig controls how amounts are rendered.
type FormatConfig struct {
	DecimalPlaces   int32  `default:"2" yaml:"decimal_places"`
	DecimalPoint    string `default:"." yaml:"decimal_point"`
	NumberSeparator string `default:"," yaml:"number_separator"`
}

// SessionConfig controls the in-memory session store and its cookie.
type SessionConfig struct {
	Capacity     int           `default:"10000" usage:"Maximum live sessions"`
	TTL          time.Duration `default:"2h" usage:"Idle session lifetime"`
	CookieName   string        `default:"cart_session" usage:"Session cookie name" yaml:"cookie_name"`
	CookieSecure bool          `default:"false" usage:"Set the Secure cookie attribute" yaml:"cookie_secure"`
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string      `usage:"Kafka brokers; empty disables publishing"`
	Topic   string        `default:"cart-events" usage:"Kafka topic for cart events"`
	Timeout time.Duration `default:"5s" usage:"Publish timeout per event"`
}

// RateLimitConfig controls the per-session sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then configuration from YAML files, environment
// variables and flags.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{Files: ConfigFiles})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "CART"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CART_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.CartDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the CART_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// CartDefaults converts the cart section into cart.Config.
func (c *Config) CartDefaults() (cart.Config, error) {
	rate, err := decimal.NewFromString(c.Cart.TaxRate)
	if err != nil {
		return cart.Config{}, errors.Wrapf(err, "cart.tax_rate %q", c.Cart.TaxRate)
	}
	if rate.IsNegative() {
		return cart.Config{}, errors.Errorf("cart.tax_rate %s must not be negative", rate)
	}
	if c.Cart.Format.DecimalPlaces < 0 {
		return cart.Config{}, errors.Errorf("cart.format.decimal_places %d must not be negative", c.Cart.Format.DecimalPlaces)
	}
	return cart.Config{
		TaxRate: rate,
		Format: cart.NumberFormat{
			DecimalPlaces:      c.Cart.Format.DecimalPlaces,
			DecimalPoint:       c.Cart.Format.DecimalPoint,
			ThousandsSeparator: c.Cart.Format.NumberSeparator,
		},
	}, nil
}

// HandlerConfig returns the HTTP handler configuration.
func (c *Config) HandlerConfig(defaults cart.Config) handler.Config {
	return handler.Config{
		Cart:         defaults,
		CookieName:   c.Session.CookieName,
		CookieSecure: c.Session.CookieSecure,
		CookieTTL:    c.Session.TTL,
	}
}

// SessionStoreConfig returns the session store configuration.
func (c *Config) SessionStoreConfig() session.Config {
	return session.Config{Capacity: c.Session.Capacity, TTL: c.Session.TTL}
}

// KafkaWriterConfig returns the Kafka writer configuration.
func (c *Config) KafkaWriterConfig() event.KafkaConfig {
	return event.KafkaConfig{Brokers: c.Kafka.Brokers, Topic: c.Kafka.Topic}
}

// RateLimiterConfig returns the rate limiter configuration keyed by the
// session cookie.
func (c *Config) RateLimiterConfig() httpmiddleware.RateLimitConfig {
	return httpmiddleware.RateLimitConfig{
		Max:     c.RateLimit.Max,
		Window:  c.RateLimit.Window,
		Keys:    c.Session.Capacity,
		KeyFunc: httpmiddleware.CookieOrIP(c.Session.CookieName),
	}
}
