package serv

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosco/docfind/core"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	defaultHP          = "0.0.0.0:8080"
	defaultPingTimeout = 10 * time.Second

	defaultConnectRetries = 3
)

// Config struct holds the docfind service config values
type Config struct {
	// Serv holds config values for the service
	Serv `mapstructure:",squash"`

	// Core holds config values for the engine
	Core core.Config `mapstructure:"engine"`

	hostPort string
}

// Serv struct contains config values used by the service
type Serv struct {
	// Application name is used in log and debug messages
	AppName string `mapstructure:"app_name"`

	// When enabled ad-hoc filters are rejected, saved filters are read-only
	// and not watched for changes
	Production bool

	// The default path to find all configuration files and scripts
	ConfigPath string `mapstructure:"config_path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level"`

	// Logging Format, defaults to json (json or plain)
	LogFormat string `mapstructure:"log_format"`

	// The host and port the service runs on. Example localhost:8080
	HostPort string `mapstructure:"host_port"`

	// Host to run the service on
	Host string

	// Port to run the service on
	Port string

	// Sets the HTTP CORS Access-Control-Allow-Origin header
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Enables debug logs for CORS
	DebugCORS bool `mapstructure:"cors_debug"`

	// Largest accepted request body in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Per client request rate limit on the API routes
	RateLimiter RateLimiter `mapstructure:"rate_limiter"`

	// Database config
	DB Database `mapstructure:"database"`

	// Saved filters config
	Filters Filters `mapstructure:"filters"`
}

// Database config
type Database struct {
	// Type is mongodb or memory
	Type string

	// Connection string, mongodb only
	ConnString string `mapstructure:"connection_string"`

	// Database name, mongodb only
	DBName string `mapstructure:"dbname"`

	// Turn 24 character hex strings in _id predicates into ObjectIDs
	CoerceObjectIDs bool `mapstructure:"coerce_object_ids"`

	// YAML or JSON file of {collection: [documents]} loaded into the memory
	// store on start
	SeedFile string `mapstructure:"seed_file"`

	PingTimeout time.Duration `mapstructure:"ping_timeout"`

	// Connection attempts made before giving up, mongodb only
	ConnectRetries uint `mapstructure:"connect_retries"`
}

// RateLimiter sets the API request rate limit. Zero rate disables it.
type RateLimiter struct {
	// Requests per second allowed from one client IP
	Rate float64

	// Largest burst of requests allowed from one client IP
	Bucket int
}

// Filters config
type Filters struct {
	// Directory below the config path holding the saved filters
	Path string

	// Reload saved filters when their files change (ignored in production)
	Watch bool
}

// ReadInConfig reads in a config file. A config may name a parent with the
// inherits key, values are then merged over the parent's. Environment
// variables prefixed with DOCFIND_ override both.
func ReadInConfig(configFile string) (*Config, error) {
	return ReadInConfigFS(configFile, afero.NewOsFs())
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))
	vi.SetFs(fs)

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		vi.SetFs(fs)

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if v := vi.GetString("inherits"); v != "" {
			return nil, fmt.Errorf("inherited config (%s) cannot itself inherit (%s)", pcf, v)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}

	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	if c.ConfigPath == "" {
		c.ConfigPath = cp
	}

	return c, nil
}

// newViper creates a new viper instance
func newViper(configPath, configFile string) *viper.Viper {
	vi := viper.New()

	vi.SetEnvPrefix("DOCFIND")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	if ext := filepath.Ext(configFile); ext != "" {
		vi.SetConfigFile(filepath.Join(configPath, configFile))
	} else {
		vi.SetConfigName(configFile)
		vi.AddConfigPath(configPath)
		vi.AddConfigPath("./config")
	}

	vi.SetDefault("app_name", "docfind")
	vi.SetDefault("production", false)
	vi.SetDefault("host_port", defaultHP)
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "json")
	vi.SetDefault("database.type", "memory")
	vi.SetDefault("database.dbname", "docfind")
	vi.SetDefault("database.connection_string", "")
	vi.SetDefault("database.ping_timeout", defaultPingTimeout)
	vi.SetDefault("database.connect_retries", defaultConnectRetries)
	vi.SetDefault("filters.path", "/filters")

	return vi
}
