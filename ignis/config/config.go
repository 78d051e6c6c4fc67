// Package config loads the Ignis framework configuration from INI file,
// environment variables and struct defaults, using viper and
// creasty/defaults. File values override defaults; an environment variable
// overrides only a key that the loaded file also sets.
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-viper/encoding/ini"
	"github.com/spf13/viper"
)

// App is the process-wide configuration singleton, populated by Init.
var App = new(Config)

var (
	mu         sync.RWMutex
	cv         *viper.Viper
	configFile string
	configName = "ignis"
	configType = "ini"
)

// Config is the root configuration struct. Each embedded section owns its
// own defaults via the `default` struct tag, applied by creasty/defaults.
type Config struct {
	Server    Server    `json:"server" mapstructure:"server" ini:"server"`
	Container Container `json:"container" mapstructure:"container" ini:"container"`
	Auth      Auth      `json:"auth" mapstructure:"auth" ini:"auth"`
	Realtime  Realtime  `json:"realtime" mapstructure:"realtime" ini:"realtime"`
	HFLog     HFLog     `json:"hflog" mapstructure:"hflog" ini:"hflog"`
	Logger    Logger    `json:"logger" mapstructure:"logger" ini:"logger"`
	Database  Database  `json:"database" mapstructure:"database" ini:"database"`
	Redis     Redis     `json:"redis" mapstructure:"redis" ini:"redis"`
	Nats      Nats      `json:"nats" mapstructure:"nats" ini:"nats"`
}

// Server is the HTTP listener configuration.
type Server struct {
	Addr            string        `json:"addr" mapstructure:"addr" default:":8080"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" default:"10s"`
}

// Container configures the DI container's diagnostics.
type Container struct {
	// DetectCycles is loaded but not consulted: the container's in-progress
	// cycle guard is always on.
	DetectCycles bool `json:"detect_cycles" mapstructure:"detect_cycles" default:"true"`
}

// Auth configures the sample JWT strategy.
type Auth struct {
	JWTSecret                  string        `json:"jwt_secret" mapstructure:"jwt_secret" default:"ignis-dev-secret"`
	JWTIssuer                  string        `json:"jwt_issuer" mapstructure:"jwt_issuer" default:"ignis"`
	AccessTokenExpireDuration  time.Duration `json:"access_token_expire" mapstructure:"access_token_expire" default:"2h"`
	RefreshTokenExpireDuration time.Duration `json:"refresh_token_expire" mapstructure:"refresh_token_expire" default:"168h"`
	ClaimEncryptionKey         string        `json:"claim_encryption_key" mapstructure:"claim_encryption_key" default:"0123456789abcdef0123456789abcdef"`
}

// Realtime configures the websocket/socket.io helper.
type Realtime struct {
	AuthTimeout         time.Duration `json:"auth_timeout" mapstructure:"auth_timeout" default:"5s"`
	HeartbeatInterval   time.Duration `json:"heartbeat_interval" mapstructure:"heartbeat_interval" default:"30s"`
	HeartbeatTimeout    time.Duration `json:"heartbeat_timeout" mapstructure:"heartbeat_timeout" default:"90s"`
	EncryptedBatchLimit int           `json:"encrypted_batch_limit" mapstructure:"encrypted_batch_limit" default:"10"`
	ServerID            string        `json:"server_id" mapstructure:"server_id"`
	PubSubBackend       string        `json:"pubsub_backend" mapstructure:"pubsub_backend" default:"redis"`
}

// HFLog configures the high-frequency ring-buffer logger's flusher.
type HFLog struct {
	FlushIntervalMillis int    `json:"flush_interval_millis" mapstructure:"flush_interval_millis" default:"100"`
	SinkFile            string `json:"sink_file" mapstructure:"sink_file" default:"/dev/stdout"`
}

// Logger configures the ambient zap-backed structured logger.
type Logger struct {
	Level      string `json:"level" mapstructure:"level" default:"info"`
	Format     string `json:"format" mapstructure:"format" default:"json"`
	File       string `json:"file" mapstructure:"file" default:""`
	Dir        string `json:"dir" mapstructure:"dir" default:"."`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" default:"7"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" default:"100"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" default:"10"`
}

// Database configures the reference gorm/sqlite DataSource adapter.
type Database struct {
	Driver string `json:"driver" mapstructure:"driver" default:"sqlite"`
	DSN    string `json:"dsn" mapstructure:"dsn" default:"ignis.db"`
}

// Redis configures the redis-backed pub/sub and cache capabilities.
type Redis struct {
	Addr     string `json:"addr" mapstructure:"addr" default:"127.0.0.1:6379"`
	Password string `json:"password" mapstructure:"password" default:""`
	DB       int    `json:"db" mapstructure:"db" default:"0"`
	Enable   bool   `json:"enable" mapstructure:"enable" default:"false"`
}

// Nats configures the alternate nats.go-backed pub/sub capability.
type Nats struct {
	URL    string `json:"url" mapstructure:"url" default:"nats://127.0.0.1:4222"`
	Enable bool   `json:"enable" mapstructure:"enable" default:"false"`
}

// Init loads configuration: defaults, then an optional INI file, then
// environment variables. Environment variables are applied only to keys
// present in the loaded file; with no file, or for a key the file omits, the
// environment is not read.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	codecRegistry := viper.NewCodecRegistry()
	if err := codecRegistry.RegisterCodec("ini", ini.Codec{}); err != nil {
		return errors.Wrap(err, "failed to register ini codec")
	}
	cv = viper.NewWithOptions(viper.WithCodecRegistry(codecRegistry))
	cv.AutomaticEnv()
	cv.AllowEmptyEnv(true)
	cv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	App = new(Config)
	if err := defaults.Set(App); err != nil {
		return errors.Wrap(err, "failed to set config defaults")
	}

	if configFile != "" {
		cv.SetConfigFile(configFile)
	} else {
		cv.SetConfigName(configName)
		cv.SetConfigType(configType)
		cv.AddConfigPath(".")
		cv.AddConfigPath("/etc/ignis/")
	}

	if err := cv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	if err := cv.Unmarshal(App); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}
	return nil
}

// SetConfigFile overrides the file Init reads, for tests and embedders.
func SetConfigFile(path string) { configFile = path }
