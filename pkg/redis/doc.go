// Package redis connects the hot-path usage counters to a Redis
// server.
//
// Connect wraps go-redis with retry and a ping verification so the
// process fails fast when Redis is unreachable at startup. Healthcheck
// exposes a ping closure for health endpoints. Configuration is
// described by the env-tagged Config struct.
package redis
