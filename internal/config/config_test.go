package config

import (
	"testing"

	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Configuration {
	cfg := GetDefaultConfig()
	cfg.Shopify.ShopName = "linear-clockworks"
	cfg.Shopify.AccessToken = "shpat_test"
	cfg.Shopify.APISecret = "shpss_test"
	return cfg
}

func TestValidateRequiresShopifySettings(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Error(t, cfg.Validate())

	assert.NoError(t, validConfig().Validate())
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_NAME", "linear-clockworks")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_env")
	t.Setenv("SHOPIFY_API_SECRET", "shpss_env")
	t.Setenv("STORE_BACKEND", "dynamodb")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "linear-clockworks", cfg.Shopify.ShopName)
	assert.Equal(t, "shpss_env", cfg.Shopify.APISecret)
	assert.Equal(t, types.StoreBackendDynamoDB, cfg.Store.Backend)
	assert.Equal(t, "https://linear-clockworks.myshopify.com/admin/api/2024-01", cfg.Shopify.AdminBaseURL())
	require.Len(t, cfg.Serial.Lines, 2)
	assert.Equal(t, "LCK-", cfg.Serial.Lines[0].Prefix)
}

func TestNewConfigFailsWithoutSecret(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_NAME", "linear-clockworks")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_env")
	t.Setenv("SHOPIFY_API_SECRET", "")

	_, err := NewConfig()
	assert.Error(t, err)
}

func TestSerialConfigValidate(t *testing.T) {
	cfg := validConfig()
	cfg.Serial.Lines = append(cfg.Serial.Lines, cfg.Serial.Lines[0])
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Serial.DefaultLine = "missing"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Serial.Lines[0].Start = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Serial.Lines[1].Name = "clear#time"
	assert.Error(t, cfg.Validate())
}

func TestAdminRequiresKeyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Admin.APIKey = "admin-secret"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "x-api-key", cfg.Admin.KeyHeader())

	cfg.Admin.Header = "X-Admin-Key"
	assert.Equal(t, "X-Admin-Key", cfg.Admin.KeyHeader())
}

func TestSerialConfigRejectsOverlappingNumbers(t *testing.T) {
	tests := []struct {
		name    string
		a, b    SerialLine
		wantErr bool
	}{
		{"same empty prefix, own counters", SerialLine{Name: "a", Counter: "a"}, SerialLine{Name: "b", Counter: "b"}, true},
		{"same prefix, own counters", SerialLine{Name: "a", Counter: "a", Prefix: "SN-"}, SerialLine{Name: "b", Counter: "b", Prefix: "SN-"}, true},
		{"prefix extended by digits", SerialLine{Name: "a", Counter: "a", Prefix: "SN"}, SerialLine{Name: "b", Counter: "b", Prefix: "SN1"}, true},
		{"digit extension on shared counter", SerialLine{Name: "a", Counter: "c", Prefix: "SN"}, SerialLine{Name: "b", Counter: "c", Prefix: "SN1"}, true},
		{"same prefix, shared counter", SerialLine{Name: "a", Counter: "c", Prefix: "SN-"}, SerialLine{Name: "b", Counter: "c", Prefix: "SN-"}, false},
		{"empty prefix and letters", SerialLine{Name: "a", Counter: "a"}, SerialLine{Name: "b", Counter: "b", Prefix: "LCK-"}, false},
		{"disjoint prefixes", SerialLine{Name: "a", Counter: "a", Prefix: "LCK-"}, SerialLine{Name: "b", Counter: "b", Prefix: "CT-"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.a.Start, tt.b.Start = 1, 1
			cfg.Serial.DefaultLine = tt.a.Name
			cfg.Serial.Lines = []SerialLine{tt.a, tt.b}
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestLineForSKU(t *testing.T) {
	sc := GetDefaultConfig().Serial

	tests := []struct {
		sku  string
		want string
		ok   bool
	}{
		{"LCK-WAL-01", "lck", true},
		{"lck-oak", "lck", true},
		{"CT-200", "cleartime", true},
		{"fa10", "cleartime", true},
		{"MP-1", "cleartime", true},
		{"KIT-DIY", "cleartime", true},
		{"POSTER-1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		line, ok := sc.LineForSKU(tt.sku)
		assert.Equal(t, tt.ok, ok, tt.sku)
		assert.Equal(t, tt.want, line.Name, tt.sku)
	}
}

func TestLine(t *testing.T) {
	sc := GetDefaultConfig().Serial

	l, ok := sc.Line("")
	require.True(t, ok)
	assert.Equal(t, "lck", l.Name)
	assert.Equal(t, "Serial Numbers", l.Label())

	l, ok = sc.Line("cleartime")
	require.True(t, ok)
	assert.Equal(t, "Cleartime Serial Numbers", l.Label())

	_, ok = sc.Line("nope")
	assert.False(t, ok)

	assert.Equal(t, "x Serial Numbers", SerialLine{Name: "x"}.Label())
}

func TestAdminBaseURLOverride(t *testing.T) {
	c := ShopifyConfig{ShopName: "s", APIVersion: "2024-01", BaseURL: "http://127.0.0.1:9999/"}
	assert.Equal(t, "http://127.0.0.1:9999", c.AdminBaseURL())
}
