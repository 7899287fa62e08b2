package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Draft      DraftConfig      `mapstructure:"draft"`
	Identity   IdentityConfig   `mapstructure:"identity"`
}

// AppConfig holds client identity configuration
type AppConfig struct {
	// SelfId overrides the user id otherwise read from the upstream token
	SelfId     string `mapstructure:"self_id"`
	PlatformId int    `mapstructure:"platform_id"`
	Mode       string `mapstructure:"mode"`
}

// ServerConfig holds the local read API configuration
type ServerConfig struct {
	HTTPPort int    `mapstructure:"http_port"`
	Host     string `mapstructure:"host"`

	// APIToken, when set, must be sent as a bearer token by local API clients
	APIToken       string   `mapstructure:"api_token"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// UpstreamConfig holds the IM server API configuration used for the initial load
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TransportConfig holds the event stream configuration
type TransportConfig struct {
	Kind           string        `mapstructure:"kind"` // ws | nats
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
}

// DedupDisabled turns message-id deduplication off when set as dispatcher.dedup_window
const DedupDisabled = -1

// DispatcherConfig holds event dispatch configuration
type DispatcherConfig struct {
	WorkerNum int `mapstructure:"worker_num"`
	QueueSize int `mapstructure:"queue_size"`
	// DedupWindow is the number of message ids remembered per conversation; 0 means the default
	DedupWindow int `mapstructure:"dedup_window"`
}

// DedupSize returns the window size handed to the reconciler, 0 when disabled
func (c *DispatcherConfig) DedupSize() int {
	if c.DedupWindow < 0 {
		return 0
	}
	return c.DedupWindow
}

// DraftConfig holds durable draft storage configuration
type DraftConfig struct {
	Backend string       `mapstructure:"backend"` // sqlite | redis | mysql
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis"`
	MySQL   MySQLConfig  `mapstructure:"mysql"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// IdentityConfig holds identity color configuration
type IdentityConfig struct {
	Palette []string `mapstructure:"palette"`
	// RetentionLimit bounds memoized identifiers; 0 keeps every assignment for the process lifetime
	RetentionLimit int `mapstructure:"retention_limit"`
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	// CONVSYNC_UPSTREAM_TOKEN overrides upstream.token
	v.SetEnvPrefix("CONVSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvs(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errcode.ErrInvalidConfig.Wrap(err)
	}

	return &cfg, nil
}

// bindEnvs registers every leaf key so Unmarshal sees env values for keys the file omits
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			if err := bindEnvs(v, field.Type, key); err != nil {
				return err
			}
			continue
		}
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults fills zero values
func (cfg *Config) SetDefaults() {
	if cfg.App.Mode == "" {
		cfg.App.Mode = "debug"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8090
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = constant.TransportWebSocket
	}
	if cfg.Transport.MaxMessageSize == 0 {
		cfg.Transport.MaxMessageSize = 51200
	}
	if cfg.Transport.WriteWait == 0 {
		cfg.Transport.WriteWait = 10 * time.Second
	}
	if cfg.Transport.PongWait == 0 {
		cfg.Transport.PongWait = 30 * time.Second
	}
	if cfg.Transport.PingPeriod == 0 {
		cfg.Transport.PingPeriod = (cfg.Transport.PongWait * 9) / 10
	}
	if cfg.Transport.MaxReconnects == 0 {
		cfg.Transport.MaxReconnects = 60
	}
	if cfg.Transport.ReconnectWait == 0 {
		cfg.Transport.ReconnectWait = 2 * time.Second
	}
	if cfg.Dispatcher.WorkerNum == 0 {
		cfg.Dispatcher.WorkerNum = 4
	}
	if cfg.Dispatcher.QueueSize == 0 {
		cfg.Dispatcher.QueueSize = 1024
	}
	if cfg.Dispatcher.DedupWindow == 0 {
		cfg.Dispatcher.DedupWindow = 256
	}
	if cfg.Draft.Backend == "" {
		cfg.Draft.Backend = constant.DraftBackendSQLite
	}
	if cfg.Draft.SQLite.Path == "" {
		cfg.Draft.SQLite.Path = "drafts.db"
	}
	if cfg.Draft.Redis.Port == 0 {
		cfg.Draft.Redis.Port = 6379
	}
	if cfg.Draft.Redis.KeyPrefix == "" {
		cfg.Draft.Redis.KeyPrefix = "convsync:"
	}
	if cfg.Draft.MySQL.Charset == "" {
		cfg.Draft.MySQL.Charset = "utf8mb4"
	}
	if cfg.Draft.MySQL.MaxOpenConns == 0 {
		cfg.Draft.MySQL.MaxOpenConns = 10
	}
	if cfg.Draft.MySQL.MaxIdleConns == 0 {
		cfg.Draft.MySQL.MaxIdleConns = 2
	}
}

// Validate checks values that have no sensible default
func (cfg *Config) Validate() error {
	switch cfg.Transport.Kind {
	case constant.TransportWebSocket, constant.TransportNATS:
	default:
		return fmt.Errorf("invalid transport kind %q", cfg.Transport.Kind)
	}
	switch cfg.Draft.Backend {
	case constant.DraftBackendSQLite, constant.DraftBackendRedis, constant.DraftBackendMySQL:
	default:
		return fmt.Errorf("invalid draft backend %q", cfg.Draft.Backend)
	}
	if cfg.Dispatcher.WorkerNum < 0 || cfg.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("dispatcher sizes must not be negative")
	}
	if cfg.Dispatcher.DedupWindow < DedupDisabled {
		return fmt.Errorf("dispatcher dedup_window must be %d (disabled) or positive", DedupDisabled)
	}
	if cfg.Transport.PingPeriod >= cfg.Transport.PongWait {
		return fmt.Errorf("transport ping_period must be less than pong_wait")
	}
	return nil
}
