// Package config loads application configuration from defaults, an optional
// YAML file and environment variables, in that order.
//
// Environment variables use the HOOKRELAY_ prefix:
//
//	HOOKRELAY_CONFIG_FILE="/etc/hookrelay/config.yaml"
//	HOOKRELAY_PORT="8000"
//	HOOKRELAY_DB_DRIVER="postgres"          # postgres, sqlite3
//	HOOKRELAY_DATABASE_URL="postgres://localhost/hookrelay?sslmode=disable"
//	HOOKRELAY_CACHE_BACKEND="redis"         # redis, memory
//	HOOKRELAY_REDIS_URL="redis://localhost:6379/0"
//	HOOKRELAY_DISPATCH_WORKERS="8"
//	HOOKRELAY_DISPATCH_QUEUE_SIZE="1024"
//	HOOKRELAY_RATE_LIMIT_RPS="5"
//	HOOKRELAY_RETENTION_SCHEDULE="0 3 * * *" # empty disables log purging
//	HOOKRELAY_RETENTION_MAX_AGE="720h"
//	HOOKRELAY_LOG_LEVEL="info"              # debug, info, warn, error
//
// The YAML file mirrors the Config struct:
//
//	database:
//	  driver: postgres
//	  url: postgres://localhost/hookrelay
//	cache:
//	  backend: redis
//	  list_ttl: 300s
//
// Load validates the result; an invalid configuration is an error.
package config
