// Package config loads duskrelay's configuration using Viper.
//
// Environment variables use the DUSKRELAY_ prefix and underscore-separated
// keys, e.g. DUSKRELAY_PROXY_LISTEN_PORT maps to proxy.listen_port.
package config

import "os"

// ProxyConfig is not modified by any package after Load returns, except
// that cmd/duskrelayd applies command-line overrides to it (after Load's
// validation) before wiring the servers. Authentication is required if
// and only if both Username and Password are present and non-empty.
type ProxyConfig struct {
	ListenHost string `yaml:"listen_host" mapstructure:"listen_host"`
	ListenPort int    `yaml:"listen_port" mapstructure:"listen_port"`
	Username   string `yaml:"username"    mapstructure:"username"`
	Password   string `yaml:"password"    mapstructure:"password"`
}

// AuthRequired reports whether clients must complete the SOCKS5
// username/password sub-negotiation.
func (p ProxyConfig) AuthRequired() bool {
	return p.Username != "" && p.Password != ""
}

// DnsConfig controls the companion DNS resolver.
type DnsConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	HostsPath  string `yaml:"hosts_path"  mapstructure:"hosts_path"`
	ResolvConf string `yaml:"resolv_conf" mapstructure:"resolv_conf"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"`
}

// AdminConfig controls the admin/status HTTP surface.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
}

// AuditConfig controls the lifecycle-event audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"db_path" mapstructure:"db_path"`
}

// Config is the root configuration structure.
type Config struct {
	Proxy   ProxyConfig   `yaml:"proxy"   mapstructure:"proxy"`
	Dns     DnsConfig     `yaml:"dns"     mapstructure:"dns"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Admin   AdminConfig   `yaml:"admin"   mapstructure:"admin"`
	Audit   AuditConfig   `yaml:"audit"   mapstructure:"audit"`
}

// ResolveConfigPath determines the config file path from flag or
// environment.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("DUSKRELAY_CONFIG")
}

// Load loads configuration from an (optional) YAML file with
// DUSKRELAY_-prefixed environment variable overrides.
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
