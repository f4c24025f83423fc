// Package cfg loads the buffer pool's runtime configuration: pool size, the
// LRU-K replacer's k, and where the disk manager keeps its backing file.
// Two loading paths are supported, both lifted from the teacher: a
// file/flag path via viper (this file) and a pure-environment path via
// envconfig (env.go), for deployments that don't ship a config file.
package cfg

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
)

// PoolConfig is the buffer pool's runtime configuration.
type PoolConfig struct {
	Environment Environment `mapstructure:"ENVIRONMENT"`

	PoolSize uint64 `mapstructure:"POOL_SIZE"`
	K        uint64 `mapstructure:"REPLACER_K"`
	DataDir  string `mapstructure:"DATA_DIR"`
}

// LoadConfig reads the .env-style file named ".env" in directory path
// (GRAPHDB's cfg.LoadConfig convention, renamed to this project's env
// prefix), falling back to
// defaults and PAGECACHE_-prefixed environment variables when no file is
// present.
func LoadConfig(path string) (PoolConfig, error) {
	viper.AddConfigPath(path)
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.SetEnvPrefix("PAGECACHE")
	viper.AutomaticEnv()

	viper.SetOptions(viper.ExperimentalBindStruct())

	viper.SetDefault("ENVIRONMENT", DefaultEnv)
	viper.SetDefault("POOL_SIZE", 64)
	viper.SetDefault("REPLACER_K", 2)
	viper.SetDefault("DATA_DIR", "./data")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("config file not found, using defaults and env vars")
	}

	var c PoolConfig

	if err := viper.Unmarshal(&c); err != nil {
		return PoolConfig{}, errors.Wrap(err, "viper unmarshaling config")
	}

	if err := c.Environment.Validate(); err != nil {
		return PoolConfig{}, errors.Wrap(err, "environment validation")
	}

	if c.PoolSize == 0 {
		return PoolConfig{}, errors.New("pool size must be greater than zero")
	}

	if c.K == 0 {
		return PoolConfig{}, errors.New("replacer k must be at least 1")
	}

	return c, nil
}

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"

	DefaultEnv = EnvDev
)

// Environment selects between the development (console) and production
// (JSON) logging configuration.
type Environment string

func (e Environment) Validate() error {
	if e != EnvDev && e != EnvProd {
		return errors.New("environment must be either dev or prod")
	}

	return nil
}
