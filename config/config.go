// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers = []string{"sqlite", "postgres"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")
	v.BindEnv("host.cors", "host_cors")

	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")
	v.BindEnv("host.ssl.certificate_path", "host_ssl_certificate_path")
	v.BindEnv("host.ssl.certificate_key_path", "host_ssl_certificate_key_path")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("security.jwt_secret", "security_jwt_secret")
	v.BindEnv("security.rate_limit", "security_rate_limit")

	v.BindEnv("verification.secret", "verification_secret")
	v.BindEnv("verification.token_ttl_min", "verification_token_ttl_min")
	v.BindEnv("verification.reset_ttl_min", "verification_reset_ttl_min")
	v.BindEnv("verification.resend_cooldown_ms", "verification_resend_cooldown_ms")
	v.BindEnv("verification.daily_limit", "verification_daily_limit")

	v.BindEnv("realtime.idle_timeout_ms", "realtime_idle_timeout_ms")
	v.BindEnv("realtime.grace_period_ms", "realtime_grace_period_ms")
	v.BindEnv("realtime.notify_retries", "realtime_notify_retries")
	v.BindEnv("realtime.notify_delay_ms", "realtime_notify_delay_ms")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.sender", "mail_sender_address")
	v.BindEnv("mail.password", "mail_password")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.cors", "http://localhost:5173")
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("security.rate_limit", 10)

	v.SetDefault("verification.token_ttl_min", 15)
	v.SetDefault("verification.reset_ttl_min", 30)
	v.SetDefault("verification.resend_cooldown_ms", 60_000)
	v.SetDefault("verification.daily_limit", 5)

	v.SetDefault("realtime.idle_timeout_ms", 900_000)
	v.SetDefault("realtime.grace_period_ms", 30_000)
	v.SetDefault("realtime.notify_retries", 5)
	v.SetDefault("realtime.notify_delay_ms", 2_000)

	v.SetDefault("mail.port", 587)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if !slices.Contains(validDBDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("security.jwt_secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	// The verification secret signs bearer tokens sent over email, a weak
	// one makes every account takeoverable
	if len(v.GetString("verification.secret")) < 32 {
		return errors.New("verification.secret must be at least 32 bytes long")
	}

	if v.GetInt("verification.daily_limit") <= 0 {
		return errors.New("verification.daily_limit must be bigger than 0")
	}

	if v.GetInt("verification.token_ttl_min") <= 0 || v.GetInt("verification.reset_ttl_min") <= 0 {
		return errors.New("verification token TTLs must be bigger than 0")
	}

	if v.GetInt("realtime.idle_timeout_ms") <= 0 {
		return errors.New("realtime.idle_timeout_ms must be bigger than 0")
	}

	if v.GetInt("realtime.notify_retries") < 0 {
		return errors.New("realtime.notify_retries can't be negative")
	}

	if v.GetString("mail.sender") == "" {
		return errors.New("no mail sender address provided")
	}

	if v.GetString("mail.host") == "" {
		return errors.New("no mail host provided")
	}

	return nil
}
