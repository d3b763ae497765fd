package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       LogFileConfig `mapstructure:"log_file"`
	StaticPath    string        `mapstructure:"static_path"`
	ReadLimit     int64         `mapstructure:"read_limit" validate:"gte=0"`
	PingPeriod    time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	ClientTimeout time.Duration `mapstructure:"client_timeout" validate:"gtefield=PingPeriod"`
	WriteWait     time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer    int           `mapstructure:"send_buffer" validate:"gt=0"`
	MaxNameLen    int           `mapstructure:"max_name_len" validate:"gte=0"`
	MaxMessageLen int           `mapstructure:"max_message_len" validate:"gte=0"`
	Backpressure  string        `mapstructure:"backpressure" validate:"oneof=kick drop"`
	Broker        BrokerConfig  `mapstructure:"broker"`
	Room          RoomConfig    `mapstructure:"room"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
}

// LogFileConfig enables a rotated log file next to stderr when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type BrokerConfig struct {
	RequestBuffer int `mapstructure:"request_buffer" validate:"gte=0"`
}

type RoomConfig struct {
	DefaultMaxClients int      `mapstructure:"default_max_clients" validate:"gt=0"`
	Seed              []string `mapstructure:"seed" validate:"dive,required"`
	EnforceCapacity   bool     `mapstructure:"enforce_capacity"`
	DeleteEmpty       bool     `mapstructure:"delete_empty"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file.path", "")
	v.SetDefault("log_file.max_size", 100)
	v.SetDefault("log_file.max_backups", 3)
	v.SetDefault("log_file.max_age", 28)
	v.SetDefault("log_file.compress", false)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "5s")
	v.SetDefault("client_timeout", "10s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("max_name_len", 36)
	v.SetDefault("max_message_len", 2000)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("broker.request_buffer", 256)
	v.SetDefault("room.default_max_clients", 10)
	v.SetDefault("room.seed", []string{"Default room"})
	v.SetDefault("room.enforce_capacity", false)
	v.SetDefault("room.delete_empty", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "chat")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of defaults.
// CHAT_* environment variables override both, e.g. CHAT_ROOM_DELETE_EMPTY=true.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
