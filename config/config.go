package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Port                   string        `env:"PORT" envDefault:"8080"`
	DatabaseDriver         string        `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL            string        `env:"DATABASE_URL,required"`
	KafkaBrokers           []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaLedgerTopic       string        `env:"KAFKA_LEDGER_TOPIC" envDefault:"artshare.ledger"`
	KafkaVerificationTopic string        `env:"KAFKA_VERIFICATION_TOPIC" envDefault:"artshare.verification"`
	KafkaGroupID           string        `env:"KAFKA_GROUP_ID" envDefault:"artshare-backend"`
	CuratorPrincipals      []string      `env:"CURATOR_PRINCIPALS" envSeparator:","`
	CacheTTL               time.Duration `env:"CACHE_TTL" envDefault:"5s"`
	CacheMaxCost           int64         `env:"CACHE_MAX_COST" envDefault:"10000"`
	SignatureMaxSkew       time.Duration `env:"SIGNATURE_MAX_SKEW" envDefault:"2m"`
	SeedCatalog            bool          `env:"SEED_CATALOG" envDefault:"false"`
	CORSOrigin             string        `env:"CORS_ORIGIN" envDefault:"*"`
	LogDevelopment         bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// KafkaEnabled indica se há brokers configurados.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load lê a configuração das variáveis de ambiente.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalize()
}

// LoadFrom lê a configuração de um mapa em vez do ambiente do processo.
func LoadFrom(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, err
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	c.KafkaBrokers = compact(c.KafkaBrokers)
	c.CuratorPrincipals = compact(c.CuratorPrincipals)
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return Config{}, fmt.Errorf("DATABASE_DRIVER deve ser postgres ou sqlite, recebido %q", c.DatabaseDriver)
	}
	if c.CacheMaxCost <= 0 {
		return Config{}, fmt.Errorf("CACHE_MAX_COST deve ser positivo")
	}
	return c, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
