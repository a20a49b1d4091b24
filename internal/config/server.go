package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Polling refresh of the occupancy log, roster and directory snapshots.
	RefreshInterval  time.Duration `env:"REFRESH_INTERVAL" envDefault:"5s"`
	WaitListDebounce time.Duration `env:"WAITLIST_DEBOUNCE" envDefault:"100ms"`
	// IANA zone the court windows' clock times are read in.
	SessionTZ string `env:"SESSION_TZ" envDefault:"Local"`

	MutationRatePerSec float64 `env:"MUTATION_RATE_PER_SEC" envDefault:"20"`
	MutationBurst      int     `env:"MUTATION_BURST" envDefault:"40"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"court.events"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
