package config

// DynamoDBConfig holds configuration for DynamoDB
type DynamoDBConfig struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	CounterTable string `mapstructure:"counter_table"`
	RecordTable  string `mapstructure:"record_table"`
	OrderIndex   string `mapstructure:"order_index"`
}
