package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("clarity-server version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	EmailJS  EmailJSConfig  `mapstructure:"emailjs"`
	Mistral  MistralConfig  `mapstructure:"mistral"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// RequestTimeout returns the per-request timeout for inbound handlers.
func (s *ServerConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// SupabaseConfig holds the identity-provider and records-store credentials.
// The service key authenticates both the GoTrue admin API and PostgREST.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// Configured reports whether the upstream is usable. Handlers answer 503
// before any business logic when it is not; startup itself never aborts.
func (s *SupabaseConfig) Configured() bool {
	return s.URL != "" && s.ServiceKey != ""
}

// EmailJSConfig holds the credentials for outbound 2FA code delivery.
type EmailJSConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ServiceID  string `mapstructure:"service_id"`
	TemplateID string `mapstructure:"template_id"`
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
}

// MistralConfig holds the chat-completion API settings.
type MistralConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
	AllowHeaders string   `mapstructure:"allow_headers"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("config-file", "", "Path to the config file")
	pflag.Int("port", 0, "Port to listen on (overrides config)")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("CLARITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.timeout", "60s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("emailjs.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	viper.SetDefault("mistral.base_url", "https://api.mistral.ai")
	viper.SetDefault("mistral.model", "mistral-large-latest")
	viper.SetDefault("cors.allow_origins", []string{"*"})
	viper.SetDefault("cors.allow_headers", "Content-Type, Authorization")

	if cfgFile := viper.GetString("config-file"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/clarity")
		// The config file is optional: a deployment may be configured
		// entirely through CLARITY_* environment variables.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if port := viper.GetInt("port"); port != 0 {
		config.Server.Port = port
	}

	return &config, nil
}
