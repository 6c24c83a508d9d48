package config

// TrackingConfig configures delivery of manufacturing tracking events through Svix
type TrackingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"auth_token"`
	BaseURL   string `mapstructure:"base_url"`
	AppID     string `mapstructure:"app_id"`
}
