package bootstrap

import (
	"fmt"

	"github.com/ConcealNetwork/conceal-faucet-api/config"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

// InitStorage creates the shared key-value store selected by configuration.
// The store client is process-wide: initialized once before serving and
// closed on shutdown, never per request.
func InitStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "redis":
		return storage.NewRedisStore(storage.RedisOptions{URL: cfg.RedisURL})
	case "database":
		return storage.NewDatabaseStore(storage.DatabaseOptions{
			Provider: cfg.DatabaseProvider,
			URL:      cfg.DatabaseURL,
		})
	case "memory":
		return storage.NewMemoryStore(storage.MemoryOptions{}), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
