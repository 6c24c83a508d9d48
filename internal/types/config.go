package types

type RunMode string

const (
	// ModeLocal is the mode for running the API server locally with migrations applied on start
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server
	ModeAPI RunMode = "api"
	// ModeAWSLambdaAPI is the mode for running the API server in AWS Lambda
	ModeAWSLambdaAPI RunMode = "aws_lambda_api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StoreBackend selects the durable store holding serial counters and records
type StoreBackend string

const (
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendDynamoDB StoreBackend = "dynamodb"
)
