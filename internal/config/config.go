// Package config provides configuration loading and validation for
// duskrelay.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/duskrelayd/main.go)
//  2. Environment variables (DUSKRELAY_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DUSKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.listen_host", "0.0.0.0")
	v.SetDefault("proxy.listen_port", 7878)
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")

	v.SetDefault("dns.listen_addr", "0.0.0.0:1053")
	v.SetDefault("dns.hosts_path", "/etc/hosts")
	v.SetDefault("dns.resolv_conf", "/etc/resolv.conf")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8088)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.db_path", "duskrelay-audit.db")
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadProxyConfig(v, cfg)
	loadDnsConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadAdminConfig(v, cfg)
	loadAuditConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadProxyConfig(v *viper.Viper, cfg *Config) {
	cfg.Proxy.ListenHost = v.GetString("proxy.listen_host")
	cfg.Proxy.ListenPort = v.GetInt("proxy.listen_port")
	cfg.Proxy.Username = v.GetString("proxy.username")
	cfg.Proxy.Password = v.GetString("proxy.password")
}

func loadDnsConfig(v *viper.Viper, cfg *Config) {
	cfg.Dns.ListenAddr = v.GetString("dns.listen_addr")
	cfg.Dns.HostsPath = v.GetString("dns.hosts_path")
	cfg.Dns.ResolvConf = v.GetString("dns.resolv_conf")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

func loadAdminConfig(v *viper.Viper, cfg *Config) {
	cfg.Admin.Enabled = v.GetBool("admin.enabled")
	cfg.Admin.Host = v.GetString("admin.host")
	cfg.Admin.Port = v.GetInt("admin.port")
}

func loadAuditConfig(v *viper.Viper, cfg *Config) {
	cfg.Audit.Enabled = v.GetBool("audit.enabled")
	cfg.Audit.DBPath = v.GetString("audit.db_path")
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.Proxy.ListenPort <= 0 || cfg.Proxy.ListenPort > 65535 {
		return errors.New("proxy.listen_port must be 1..65535")
	}

	if (cfg.Proxy.Username == "") != (cfg.Proxy.Password == "") {
		return errors.New("proxy.username and proxy.password must both be set or both be empty")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.Admin.Host == "" {
		cfg.Admin.Host = "127.0.0.1"
	}
	if cfg.Admin.Enabled {
		if cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535 {
			return errors.New("admin.port must be 1..65535")
		}
	}

	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = "duskrelay-audit.db"
	}

	return nil
}
