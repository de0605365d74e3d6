package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/yusheng929/steam-plugin/internal/steamapi"
)

// MemoryStoreAddr selects the in-process store instead of Redis.
const MemoryStoreAddr = "memory"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Steam    SteamConfig    `mapstructure:"steam"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SecurityConfig struct {
	// 为空时不校验
	APIKey         string   `mapstructure:"api_key"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB when set.
	URL         string        `mapstructure:"url"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type SteamConfig struct {
	APIKeys     []string          `mapstructure:"api_keys"`
	Proxy       string            `mapstructure:"proxy"`
	HTTPSProxy  string            `mapstructure:"https_proxy"`
	CommonProxy string            `mapstructure:"common_proxy"`
	APIProxy    string            `mapstructure:"api_proxy"`
	Timeout     int               `mapstructure:"timeout"` // 秒
	KeyPolicy   string            `mapstructure:"key_policy"`
	Timezone    string            `mapstructure:"timezone"`
	Defaults    map[string]string `mapstructure:"defaults"`
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, applies defaults, then validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate 加载配置，如果不存在则创建默认配置
func LoadOrCreate() (*Config, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "./config.yaml"
	}

	if _, err := os.Stat(configFile); err == nil {
		cfg, err := Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		return cfg, nil
	}

	fmt.Println("\n⚠️  Config file not found, creating default config...")

	cfg := &Config{}
	setDefaults(cfg)

	if err := SaveConfig(cfg); err != nil {
		fmt.Printf("\n⚠️  Warning: Failed to save config file: %v\n", err)
	} else {
		fmt.Printf("\n✅ Config file created: %s\n", configFile)
	}
	fmt.Println("   Add your Steam Web API keys under steam.api_keys and restart.")

	// 默认配置没有 key，仍需校验，让调用方拿到明确的错误
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config) error {
	viper.Set("server", cfg.Server)
	viper.Set("security", cfg.Security)
	viper.Set("logging", cfg.Logging)
	viper.Set("redis", cfg.Redis)
	viper.Set("steam", cfg.Steam)

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPath = "./config.yaml"
	}

	return viper.WriteConfigAs(configPath)
}

func setDefaults(cfg *Config) {
	// 服务器配置
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8046
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	// 日志配置
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/steamapi.log"
	}
	cfg.Logging.ConsoleOutput = true
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}

	// Redis
	if cfg.Redis.Addr == "" && cfg.Redis.URL == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// Steam
	if cfg.Steam.Timeout == 0 {
		cfg.Steam.Timeout = 5
	}
	if cfg.Steam.KeyPolicy == "" {
		cfg.Steam.KeyPolicy = string(steamapi.PolicyLeastUsed)
	}
	if cfg.Steam.Timezone == "" {
		cfg.Steam.Timezone = "Local"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if len(cfg.Steam.APIKeys) == 0 {
		return fmt.Errorf("steam.api_keys must contain at least one key")
	}
	for i, k := range cfg.Steam.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("steam.api_keys[%d] is empty", i)
		}
	}
	if cfg.Steam.Timeout < 0 {
		return fmt.Errorf("invalid steam.timeout: %d", cfg.Steam.Timeout)
	}
	switch steamapi.SelectionPolicy(cfg.Steam.KeyPolicy) {
	case steamapi.PolicyLeastUsed, steamapi.PolicyFirstUnused:
	default:
		return fmt.Errorf("invalid steam.key_policy: %q", cfg.Steam.KeyPolicy)
	}
	if cfg.Steam.CommonProxy != "" && !strings.Contains(cfg.Steam.CommonProxy, "{{url}}") {
		return fmt.Errorf("steam.common_proxy must contain {{url}}")
	}
	if _, err := time.LoadLocation(cfg.Steam.Timezone); err != nil {
		return fmt.Errorf("invalid steam.timezone: %w", err)
	}
	return nil
}

// SteamOptions converts the steam section into client options.
func (c *SteamConfig) SteamOptions() (steamapi.Options, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return steamapi.Options{}, fmt.Errorf("invalid steam.timezone: %w", err)
	}

	keys := make([]string, 0, len(c.APIKeys))
	for _, k := range c.APIKeys {
		keys = append(keys, strings.TrimSpace(k))
	}

	var defaults map[string]string
	if len(c.Defaults) > 0 {
		defaults = make(map[string]string, len(steamapi.DefaultParams)+len(c.Defaults))
		for k, v := range steamapi.DefaultParams {
			defaults[k] = v
		}
		for k, v := range c.Defaults {
			defaults[k] = v
		}
	}

	return steamapi.Options{
		Keys:          keys,
		Proxy:         c.Proxy,
		HTTPSProxy:    c.HTTPSProxy,
		CommonProxy:   c.CommonProxy,
		APIProxy:      c.APIProxy,
		Timeout:       time.Duration(c.Timeout) * time.Second,
		Policy:        steamapi.SelectionPolicy(c.KeyPolicy),
		DefaultParams: defaults,
		Location:      loc,
	}, nil
}

// UseMemoryStore reports whether the in-process store was requested.
func (c *RedisConfig) UseMemoryStore() bool {
	return c.URL == "" && c.Addr == MemoryStoreAddr
}

// RedisOptions builds go-redis options from the redis section.
func (c *RedisConfig) RedisOptions() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis.url: %w", err)
		}
		if c.DialTimeout > 0 {
			opts.DialTimeout = c.DialTimeout
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	}, nil
}
