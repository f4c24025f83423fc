package cfg

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvConfig mirrors PoolConfig but is populated purely from the process
// environment (PAGECACHE_* variables), for deployments that don't ship a
// config file next to the binary. Mirrors the teacher's app/env.go.
type EnvConfig struct {
	Environment string `split_words:"true" default:"dev"`

	PoolSize uint64 `split_words:"true" default:"64"`
	K        uint64 `envconfig:"REPLACER_K" default:"2"`
	DataDir  string `split_words:"true" default:"./data"`
}

// LoadEnv loads a .env file if present (ignoring its absence) and then
// reads every PAGECACHE_* variable EnvConfig declares, applying defaults
// for the ones that are absent; none of them is required.
func LoadEnv() (EnvConfig, error) {
	_ = godotenv.Load() // optional: missing .env is fine, env vars still apply

	var e EnvConfig

	if err := envconfig.Process("PAGECACHE", &e); err != nil {
		return EnvConfig{}, err
	}

	if err := Environment(e.Environment).Validate(); err != nil {
		return EnvConfig{}, err
	}

	return e, nil
}

// ToPoolConfig converts the environment-sourced config into a PoolConfig.
func (e EnvConfig) ToPoolConfig() PoolConfig {
	return PoolConfig{
		Environment: Environment(e.Environment),
		PoolSize:    e.PoolSize,
		K:           e.K,
		DataDir:     e.DataDir,
	}
}
