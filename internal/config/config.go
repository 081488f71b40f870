package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	LogLevel    string `mapstructure:"log_level"`
	SDKLogLevel string `mapstructure:"sdk_log_level"`

	Domain     string `mapstructure:"domain"`
	AppID      string `mapstructure:"app_id"`
	Token      string `mapstructure:"token"`
	ServiceURL string `mapstructure:"service_url"`
	P2P        bool   `mapstructure:"p2p"`
	Resolution string `mapstructure:"resolution"`

	ICEServers   []string `mapstructure:"ice_servers"`
	AudioLevels  bool     `mapstructure:"audio_levels"`
	ThirdParties bool     `mapstructure:"third_party_requests"`

	StoragePath string        `mapstructure:"storage_path"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`

	ActionRate     int           `mapstructure:"action_rate"`
	ActionInterval time.Duration `mapstructure:"action_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "meet-dev-secret")

	v.SetDefault("log_level", "info")
	v.SetDefault("sdk_log_level", "error")

	v.SetDefault("domain", "meet.jit.si")
	v.SetDefault("app_id", "")
	v.SetDefault("token", "")
	v.SetDefault("service_url", "")
	v.SetDefault("p2p", true)
	v.SetDefault("resolution", "360")

	v.SetDefault("ice_servers", []string{})
	v.SetDefault("audio_levels", false)
	v.SetDefault("third_party_requests", false)

	v.SetDefault("storage_path", "./data/devices.json")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("action_rate", 10)
	v.SetDefault("action_interval", "10s")
}

// Load reads config/config.{CONFIG_ENV}.yaml. MEET_* environment variables
// override file values.
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
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("MEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("domain", cfg.Domain).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}
