package config

// AdminConfig guards the manual order tools. When disabled the routes are not mounted.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	// Header carries the key, x-api-key unless set
	Header string `mapstructure:"header"`
}

// KeyHeader returns the header the admin key is read from
func (c AdminConfig) KeyHeader() string {
	if c.Header != "" {
		return c.Header
	}
	return "x-api-key"
}
