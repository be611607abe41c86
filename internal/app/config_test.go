package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/setup"
)

func testLoader(t *testing.T, files []string, envs ...string) aconfig.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	for _, kv := range envs {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}
	return aconfig.Config{
		Files: files,
		Args:  []string{},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(testLoader(t, nil, "CART_DATABASE_URL=postgres://localhost/cart"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "16", cfg.Cart.TaxRate)
	assert.Equal(t, "shopping_cart", cfg.Cart.Table)
	assert.Equal(t, int32(2), cfg.Cart.Format.DecimalPlaces)
	assert.Equal(t, ".", cfg.Cart.Format.DecimalPoint)
	assert.Equal(t, ",", cfg.Cart.Format.NumberSeparator)
	assert.Equal(t, "cart_session", cfg.Session.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "cart-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)

	defaults, err := cfg.CartDefaults()
	require.NoError(t, err)
	assert.Equal(t, cart.DefaultConfig().Format, defaults.Format)
	assert.True(t, decimal.NewFromInt(16).Equal(defaults.TaxRate))
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://db/cart
cart:
  tax_rate: "7.5"
  table: saved_carts
  format:
    decimal_places: 3
    decimal_point: ","
    number_separator: "."
`), 0o600))

	cfg, err := loadConfig(testLoader(t, []string{path}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/cart", cfg.DatabaseURL)
	assert.Equal(t, "saved_carts", cfg.Cart.Table)

	defaults, err := cfg.CartDefaults()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.5").Equal(defaults.TaxRate))
	assert.Equal(t, "1.234,500", defaults.Format.Format(decimal.RequireFromString("1234.5")))
}

func TestLoadConfig_PublishedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, setup.DefaultConfig, 0o600))

	cfg, err := loadConfig(testLoader(t, []string{path}))
	require.NoError(t, err)
	assert.Equal(t, "cart_session", cfg.Session.CookieName)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	base := testLoader(t, nil)
	t.Setenv("DATABASE_URL", "postgres://platform/cart")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(base)
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/cart", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		envs    []string
		wantErr string
	}{
		{name: "missing database", envs: nil, wantErr: "database URL is required"},
		{
			name:    "bad tax rate",
			envs:    []string{"CART_DATABASE_URL=postgres://x", "CART_CART_TAX_RATE=abc"},
			wantErr: "cart.tax_rate",
		},
		{
			name:    "negative tax rate",
			envs:    []string{"CART_DATABASE_URL=postgres://x", "CART_CART_TAX_RATE=-1"},
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(testLoader(t, nil, tt.envs...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg := &Config{
		Session:   SessionConfig{Capacity: 50, TTL: time.Hour, CookieName: "sid", CookieSecure: true},
		Kafka:     KafkaConfig{Brokers: []string{"kafka:9092"}, Topic: "events"},
		RateLimit: RateLimitConfig{Max: 10, Window: time.Minute},
	}

	hc := cfg.HandlerConfig(cart.DefaultConfig())
	assert.Equal(t, "sid", hc.CookieName)
	assert.True(t, hc.CookieSecure)
	assert.Equal(t, time.Hour, hc.CookieTTL)

	assert.Equal(t, 50, cfg.SessionStoreConfig().Capacity)
	assert.Equal(t, "events", cfg.KafkaWriterConfig().Topic)

	rl := cfg.RateLimiterConfig()
	assert.Equal(t, 50, rl.Keys)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})
	assert.Equal(t, "c:abc", rl.KeyFunc(req))
}
