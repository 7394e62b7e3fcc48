package config

import (
	"fmt"
	"strconv"
)

// ValidateConfig checks that every required value is present and well-formed.
func ValidateConfig(cfg *Config) error {
	required := map[string]string{
		"SERVER_PORT": cfg.ServerPort,
		"DB_HOST":     cfg.DBHost,
		"DB_PORT":     cfg.DBPort,
		"DB_USER":     cfg.DBUser,
		"DB_NAME":     cfg.DBName,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	for name, value := range map[string]string{
		"SERVER_PORT": cfg.ServerPort,
		"DB_PORT":     cfg.DBPort,
		"REDIS_PORT":  cfg.RedisPort,
	} {
		if value == "" {
			continue
		}
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%s must be a valid port number, got %q", name, value)
		}
	}
	return nil
}
