package config

import (
	"errors"
	"fmt"
	"time"
)

// AppConfig is everything court-server reads from the environment.
// Location is SessionTZ resolved.
type AppConfig struct {
	Server   ServerConfig
	Log      LogConfig
	Location *time.Location
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	return newAppConfig(serverCfg, logCfg)
}

func newAppConfig(server ServerConfig, logCfg LogConfig) (AppConfig, error) {
	if err := checkRotation(server); err != nil {
		return AppConfig{}, err
	}
	loc, err := time.LoadLocation(server.SessionTZ)
	if err != nil {
		return AppConfig{}, fmt.Errorf("SESSION_TZ: %w", err)
	}
	return AppConfig{
		Server:   server,
		Log:      logCfg,
		Location: loc,
	}, nil
}

// checkRotation rejects settings the engine would otherwise paper over with
// its own defaults. A negative REFRESH_INTERVAL turns polling off.
func checkRotation(cfg ServerConfig) error {
	var errs []error
	if cfg.WaitListDebounce <= 0 {
		errs = append(errs, fmt.Errorf("WAITLIST_DEBOUNCE must be positive, got %s", cfg.WaitListDebounce))
	}
	if cfg.RefreshInterval > 0 && cfg.WaitListDebounce >= cfg.RefreshInterval {
		errs = append(errs, fmt.Errorf("WAITLIST_DEBOUNCE %s must be shorter than REFRESH_INTERVAL %s", cfg.WaitListDebounce, cfg.RefreshInterval))
	}
	if cfg.MutationRatePerSec > 0 && cfg.MutationBurst < 1 {
		errs = append(errs, errors.New("MUTATION_BURST must be at least 1 when rate limiting"))
	}
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		errs = append(errs, errors.New("AMQP_EXCHANGE is required with AMQP_URL"))
	}
	return errors.Join(errs...)
}
