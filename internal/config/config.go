// Package config resolves atelier settings from defaults, an optional config
// file, a .env file and ATELIER_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "ATELIER"
	configName = "atelier"
)

// Config is the resolved application configuration.
type Config struct {
	DBPath       string   `mapstructure:"db_path" validate:"required"`
	TemplatesDir string   `mapstructure:"templates_dir"`
	PoliciesDir  string   `mapstructure:"policies_dir"`
	LogLevel     string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string   `mapstructure:"log_format" validate:"oneof=text json"`
	NotifyBuffer int      `mapstructure:"notify_buffer" validate:"gte=1,lte=65536"`
	Actor        string   `mapstructure:"actor"`
	Roles        []string `mapstructure:"roles" validate:"dive,required"`
}

// Options control where Load looks.
type Options struct {
	// ConfigFile, when set, must exist. Otherwise atelier.{yaml,toml,json}
	// is searched in HomeDir/.atelier and the working directory.
	ConfigFile string
	// EnvFile is the dotenv file to read; missing files are ignored.
	EnvFile string
	// HomeDir overrides os.UserHomeDir.
	HomeDir string
}

var validate = validator.New()

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}

	home := opts.HomeDir
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		home = h
	}
	baseDir := filepath.Join(home, ".atelier")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", filepath.Join(baseDir, "atelier.db"))
	v.SetDefault("templates_dir", filepath.Join(baseDir, "templates"))
	v.SetDefault("policies_dir", filepath.Join(baseDir, "policies"))
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("notify_buffer", 64)
	v.SetDefault("actor", "")
	v.SetDefault("roles", []string{"owner"})

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(baseDir)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	// ATELIER_ROLES=owner,architect arrives as one string.
	cfg.Roles = splitRoles(cfg.Roles)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func splitRoles(in []string) []string {
	var out []string
	for _, r := range in {
		for _, part := range strings.FieldsFunc(r, func(c rune) bool { return c == ',' || c == ' ' }) {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
