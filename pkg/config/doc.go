// Package config loads application configuration from environment
// variables into tagged Go structs.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
// a default .env file is picked up once per process, env.Parse fills
// the struct from field tags, and each configuration type is cached
// so it is parsed at most once for the lifetime of the process.
//
// # Usage
//
//	type PostgresConfig struct {
//	    ConnectionString string `env:"DATABASE_URL,required"`
//	    MaxConns         int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
//	}
//
//	var cfg PostgresConfig
//	config.MustLoad(&cfg)
//
// Sentinel errors (ErrParsingConfig, ErrLoadingEnvFile, ErrNilPointer)
// can be matched with errors.Is. ResetCache exists for tests that
// mutate the environment between loads.
package config
