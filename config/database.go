package config

import "time"

// DatabaseConfig holds the remote document store settings. An empty URI
// disables remote sync.
type DatabaseConfig struct {
	URI             string
	DatabaseName    string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	RetryWrites     bool
}

func loadDatabaseConfig(e *env) DatabaseConfig {
	return DatabaseConfig{
		URI:             e.getString("MONGO_URI", ""),
		DatabaseName:    e.getString("MONGO_DB", "taskquest"),
		MaxPoolSize:     e.getUint64("MONGO_MAX_POOL_SIZE", 100),
		MinPoolSize:     e.getUint64("MONGO_MIN_POOL_SIZE", 0),
		MaxConnIdleTime: e.getDuration("MONGO_MAX_CONN_IDLE_TIME", time.Minute),
		ConnectTimeout:  e.getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		RetryWrites:     e.getBool("MONGO_RETRY_WRITES", true),
	}
}

func (c DatabaseConfig) Enabled() bool {
	return c.URI != ""
}
