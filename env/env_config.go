package env

const (
	// REDIS

	EnvRedisURL = "REDIS_URL"

	// DATABASE

	EnvDatabaseURL = "DATABASE_URL"

	// WALLET RPC

	EnvWalletRPCURL = "WALLET_RPC_URL"

	// FAUCET

	EnvConfigPath   = "FAUCET_CONFIG_PATH"
	EnvAbuseLogPath = "FAUCET_ABUSE_LOG_PATH"

	// ENVIRONMENT

	EnvGoEnvironment = "GO_ENV"
	EnvPort          = "PORT"
)
