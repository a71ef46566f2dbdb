package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// AvatarConfig is the start configuration sent to the vendor.
type AvatarConfig struct {
	Quality          string  `mapstructure:"quality"`
	Name             string  `mapstructure:"name"`
	KnowledgeID      string  `mapstructure:"knowledge_id"`
	VoiceRate        float64 `mapstructure:"voice_rate"`
	VoiceEmotion     string  `mapstructure:"voice_emotion"`
	VoiceModel       string  `mapstructure:"voice_model"`
	Transport        string  `mapstructure:"transport"`
	STTProvider      string  `mapstructure:"stt_provider"`
	RemoveBackground bool    `mapstructure:"remove_background"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Templates  string        `mapstructure:"templates"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// BaseAPIURL is the vendor endpoint; APIKey authenticates token creation.
	BaseAPIURL  string        `mapstructure:"base_api_url"`
	APIKey      string        `mapstructure:"api_key"`
	TokenURL    string        `mapstructure:"token_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	ICEServers  []string      `mapstructure:"ice_servers"`

	DefaultLanguage string        `mapstructure:"default_language"`
	StartLimit      int           `mapstructure:"start_limit"`
	StartWindow     time.Duration `mapstructure:"start_window"`

	Avatar AvatarConfig `mapstructure:"avatar"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	_ = v.BindEnv("base_api_url", "BASE_API_URL", "NEXT_PUBLIC_BASE_API_URL")
	_ = v.BindEnv("api_key", "HEYGEN_API_KEY")
	_ = v.BindEnv("token_url", "TOKEN_URL")
	_ = v.BindEnv("secret", "SESSION_SECRET")
	_ = v.BindEnv("port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.APIKey == "" && cfg.TokenURL == "" {
		log.Warn().Str("module", "config").Msg("no api key and no token url, session start will fail")
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("base_api_url", cfg.BaseAPIURL).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web/static")
	v.SetDefault("templates", "./web/templates/*.html")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")

	v.SetDefault("base_api_url", "https://api.heygen.com")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("default_language", "en")
	v.SetDefault("start_limit", 5)
	v.SetDefault("start_window", "1m")

	v.SetDefault("avatar.quality", "high")
	v.SetDefault("avatar.name", "Pedro_Chair_Sitting_public")
	v.SetDefault("avatar.knowledge_id", "0782f55fe4d14b9ca68de65db448924e")
	v.SetDefault("avatar.voice_rate", 1.5)
	v.SetDefault("avatar.voice_emotion", "excited")
	v.SetDefault("avatar.voice_model", "eleven_flash_v2_5")
	v.SetDefault("avatar.transport", "websocket")
	v.SetDefault("avatar.stt_provider", "deepgram")
	v.SetDefault("avatar.remove_background", true)
}
